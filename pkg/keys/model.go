package keys

import (
	"encoding/hex"
	"time"

	"github.com/uptrace/bun"
)

// KeyDao is the database model for encrypted private keys
type KeyDao struct {
	bun.BaseModel       `bun:"table:node_keys,alias:nk"`
	PublicKey           string    `bun:"public_key,pk,type:varchar(66)"`
	EncryptedPrivateKey string    `bun:"encrypted_private_key,notnull,type:text"`
	Purpose             string    `bun:"purpose,notnull,type:varchar(32)"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toKeyDao(k *StoredKey) *KeyDao {
	return &KeyDao{
		PublicKey:           hex.EncodeToString(k.PublicKey),
		EncryptedPrivateKey: k.EncryptedPrivateKey,
		Purpose:             k.Purpose,
		CreatedAt:           k.CreatedAt,
	}
}

func fromKeyDao(dao *KeyDao) (*StoredKey, error) {
	pub, err := hex.DecodeString(dao.PublicKey)
	if err != nil {
		return nil, err
	}
	return &StoredKey{
		PublicKey:           pub,
		EncryptedPrivateKey: dao.EncryptedPrivateKey,
		Purpose:             dao.Purpose,
		CreatedAt:           dao.CreatedAt,
	}, nil
}
