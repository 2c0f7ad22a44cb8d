package keys

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type pgKeyStore struct {
	db *bun.DB
}

// NewPGKeyStore creates a postgres implementation of KeyStore
func NewPGKeyStore(db *bun.DB) KeyStore {
	return &pgKeyStore{db: db}
}

func (s *pgKeyStore) SaveKey(ctx context.Context, key *StoredKey) error {
	if _, err := s.db.NewInsert().Model(toKeyDao(key)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

func (s *pgKeyStore) GetKey(ctx context.Context, publicKey []byte) (*StoredKey, error) {
	dao := new(KeyDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("public_key = ?", hex.EncodeToString(publicKey)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return fromKeyDao(dao)
}

func (s *pgKeyStore) FindByPurpose(ctx context.Context, purpose string) (*StoredKey, error) {
	dao := new(KeyDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("purpose = ?", purpose).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to find %s key: %w", purpose, err)
	}
	return fromKeyDao(dao)
}
