package saga

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewPGStore creates a postgres implementation of Store
func NewPGStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Create(ctx context.Context, st *State) error {
	if _, err := s.db.NewInsert().Model(toSagaDao(st)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert saga: %w", err)
	}
	return nil
}

func (s *pgStore) Update(ctx context.Context, st *State) error {
	res, err := s.db.NewUpdate().
		Model(toSagaDao(st)).
		Column("step", "stage", "error_message", "tx_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update saga: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, st.ID)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*State, error) {
	dao := new(SagaDao)
	if err := s.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get saga: %w", err)
	}
	return fromSagaDao(dao), nil
}

func (s *pgStore) ListActive(ctx context.Context) ([]*State, error) {
	var daos []SagaDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("step NOT IN (?)", bun.In([]string{string(StepDone), string(StepFailed)})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sagas: %w", err)
	}
	out := make([]*State, len(daos))
	for i := range daos {
		out[i] = fromSagaDao(&daos[i])
	}
	return out, nil
}
