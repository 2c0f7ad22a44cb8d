package distribution

import (
	"encoding/hex"
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// DistributionDao is the database model for distribution records. A unique index
// on (token_type_id, holder_id) makes inserts idempotent.
type DistributionDao struct {
	bun.BaseModel   `bun:"table:distribution_records,alias:dr"`
	ID              int64     `bun:"id,pk,autoincrement"`
	TokenTypeID     string    `bun:"token_type_id,notnull,type:varchar(128)"`
	HolderID        string    `bun:"holder_id,notnull,type:varchar(255)"`
	HolderPublicKey string    `bun:"holder_public_key,type:varchar(66)"`
	Anonymous       bool      `bun:"anonymous,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toDistributionDao(rc Recipient) *DistributionDao {
	return &DistributionDao{
		TokenTypeID:     rc.TokenTypeID,
		HolderID:        rc.Holder.ID,
		HolderPublicKey: hex.EncodeToString(rc.Holder.PublicKey),
		Anonymous:       rc.Holder.Anonymous,
	}
}

func fromDistributionDao(dao *DistributionDao) (party.Party, error) {
	pub, err := hex.DecodeString(dao.HolderPublicKey)
	if err != nil {
		return party.Party{}, err
	}
	return party.Party{ID: dao.HolderID, PublicKey: pub, Anonymous: dao.Anonymous}, nil
}
