package party

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type pgRegistry struct {
	db *bun.DB
}

// NewPGRegistry creates a postgres implementation of Registry
func NewPGRegistry(db *bun.DB) Registry {
	return &pgRegistry{db: db}
}

func (r *pgRegistry) RegisterWellKnown(ctx context.Context, p Party) error {
	if p.Anonymous {
		return fmt.Errorf("register well-known %s: party is anonymous", p.ID)
	}
	_, err := r.db.NewInsert().
		Model(toPartyDao(p, nil)).
		On("CONFLICT (id) DO UPDATE").
		Set("public_key = EXCLUDED.public_key").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to register party: %w", err)
	}
	return nil
}

func (r *pgRegistry) RegisterAnonymous(ctx context.Context, anonymous, owner Party) error {
	if !anonymous.Anonymous || owner.Anonymous {
		return fmt.Errorf("register anonymous %s: expected anonymous party owned by well-known party", anonymous.ID)
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(toPartyDao(owner, nil)).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to register owner: %w", err)
		}

		existing := new(PartyDao)
		err := tx.NewSelect().Model(existing).Where("id = ?", anonymous.ID).Scan(ctx)
		switch {
		case err == nil:
			if existing.OwnerID == nil || *existing.OwnerID != owner.ID {
				return ErrConflictingOwner
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check anonymous party: %w", err)
		}

		if _, err := tx.NewInsert().Model(toPartyDao(anonymous, &owner)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to register anonymous party: %w", err)
		}
		return nil
	})
}

func (r *pgRegistry) Lookup(ctx context.Context, id string) (Party, error) {
	dao := new(PartyDao)
	if err := r.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Party{}, fmt.Errorf("%w: %s", ErrUnknownParty, id)
		}
		return Party{}, fmt.Errorf("failed to lookup party: %w", err)
	}
	return fromPartyDao(dao)
}

func (r *pgRegistry) WellKnown(ctx context.Context, p Party) (Party, error) {
	if !p.Anonymous {
		return p, nil
	}
	owner := new(PartyDao)
	err := r.db.NewSelect().
		Model(owner).
		Where("p.id = (SELECT owner_id FROM parties WHERE id = ?)", p.ID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Party{}, fmt.Errorf("%w: %s", ErrUnknownParty, p.ID)
		}
		return Party{}, fmt.Errorf("failed to resolve anonymous party: %w", err)
	}
	return fromPartyDao(owner)
}
