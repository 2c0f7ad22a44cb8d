package distribution

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

type pgRegistry struct {
	db *bun.DB
}

// NewPGRegistry creates a postgres implementation of Registry. Concurrent inserts
// of the same pair are resolved by the unique index.
func NewPGRegistry(db *bun.DB) Registry {
	return &pgRegistry{db: db}
}

func (r *pgRegistry) insert(ctx context.Context, records []token.Record) (int, error) {
	rcs := recipients(records)
	if len(rcs) == 0 {
		return 0, nil
	}
	daos := make([]*DistributionDao, len(rcs))
	for i, rc := range rcs {
		daos[i] = toDistributionDao(rc)
	}
	res, err := r.db.NewInsert().
		Model(&daos).
		On("CONFLICT (token_type_id, holder_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert distribution records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inserted distribution records: %w", err)
	}
	return int(n), nil
}

func (r *pgRegistry) AddRecipients(ctx context.Context, records []token.Record) (int, error) {
	return r.insert(ctx, records)
}

func (r *pgRegistry) UpdateRecipients(ctx context.Context, records []token.Record) (int, error) {
	return r.insert(ctx, records)
}

func (r *pgRegistry) ListRecipients(ctx context.Context, tokenTypeID string) ([]party.Party, error) {
	var daos []DistributionDao
	err := r.db.NewSelect().
		Model(&daos).
		Where("token_type_id = ?", tokenTypeID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	out := make([]party.Party, 0, len(daos))
	for i := range daos {
		p, err := fromDistributionDao(&daos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
