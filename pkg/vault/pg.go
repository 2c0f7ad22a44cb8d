package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
)

type pgVault struct {
	db *bun.DB
}

// NewPGVault creates a postgres implementation of Vault
func NewPGVault(db *bun.DB) Vault {
	return &pgVault{db: db}
}

func (v *pgVault) Record(ctx context.Context, tx *ledger.CommittedTransaction, mode Visibility, relevant Relevance) error {
	err := v.db.RunInTx(ctx, nil, func(ctx context.Context, dbTx bun.Tx) error {
		res, err := dbTx.NewInsert().
			Model(&TransactionDao{
				ID:          tx.ID,
				Visibility:  string(mode),
				Payload:     tx,
				CommittedAt: tx.CommittedAt,
			}).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}

		for _, ref := range tx.InputRefs() {
			if _, err := dbTx.NewUpdate().
				Model((*StateDao)(nil)).
				Set("consumed_by = ?", tx.ID).
				Where("tx_id = ? AND output_index = ?", ref.TxID, ref.Index).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to consume %s: %w", ref, err)
			}
		}

		var states []*StateDao
		for _, out := range tx.OutputStates() {
			ours := relevant(out.Record)
			if !ours && mode == RelevantOnly {
				continue
			}
			states = append(states, toStateDao(out, ours))
		}
		if len(states) == 0 {
			return nil
		}
		if _, err := dbTx.NewInsert().Model(&states).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert states: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.TransactionsRecorded.WithLabelValues(string(mode)).Inc()
	return nil
}

func (v *pgVault) FindCurrentRecord(ctx context.Context, linearID string) (*ledger.StateAndRef, error) {
	dao := new(StateDao)
	err := v.db.NewSelect().
		Model(dao).
		Where("linear_id = ?", linearID).
		Where("consumed_by IS NULL").
		Order("seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: record %s", ErrNotFound, linearID)
		}
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	sr := fromStateDao(dao)
	return &sr, nil
}

func (v *pgVault) Unconsumed(ctx context.Context, tokenTypeID string, holderIDs []string) ([]ledger.StateAndRef, error) {
	var daos []StateDao
	q := v.db.NewSelect().
		Model(&daos).
		Where("token_type_id = ?", tokenTypeID).
		Where("relevant").
		Where("consumed_by IS NULL").
		Order("seq ASC")
	if len(holderIDs) > 0 {
		q = q.Where("holder_id IN (?)", bun.In(holderIDs))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list unconsumed states: %w", err)
	}
	out := make([]ledger.StateAndRef, len(daos))
	for i := range daos {
		out[i] = fromStateDao(&daos[i])
	}
	return out, nil
}

func (v *pgVault) SumBalance(ctx context.Context, tokenTypeID string) (decimal.Decimal, error) {
	var sum string
	err := v.db.NewSelect().
		Model((*StateDao)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)::text").
		Where("token_type_id = ?", tokenTypeID).
		Where("relevant").
		Where("fungible").
		Where("consumed_by IS NULL").
		Scan(ctx, &sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balance: %w", err)
	}
	balance, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", sum, err)
	}
	return balance, nil
}

func (v *pgVault) Transaction(ctx context.Context, id string) (*ledger.CommittedTransaction, error) {
	dao := new(TransactionDao)
	if err := v.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return dao.Payload, nil
}
