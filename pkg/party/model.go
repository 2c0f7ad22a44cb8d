package party

import (
	"encoding/hex"
	"time"

	"github.com/uptrace/bun"
)

// PartyDao is the database model for known parties and anonymous identity links
type PartyDao struct {
	bun.BaseModel `bun:"table:parties,alias:p"`
	ID            string    `bun:"id,pk,type:varchar(255)"`
	PublicKey     string    `bun:"public_key,type:varchar(66)"`
	Anonymous     bool      `bun:"anonymous,notnull"`
	OwnerID       *string   `bun:"owner_id,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toPartyDao(p Party, owner *Party) *PartyDao {
	dao := &PartyDao{
		ID:        p.ID,
		PublicKey: hex.EncodeToString(p.PublicKey),
		Anonymous: p.Anonymous,
	}
	if owner != nil {
		dao.OwnerID = &owner.ID
	}
	return dao
}

func fromPartyDao(dao *PartyDao) (Party, error) {
	pub, err := hex.DecodeString(dao.PublicKey)
	if err != nil {
		return Party{}, err
	}
	return Party{ID: dao.ID, PublicKey: pub, Anonymous: dao.Anonymous}, nil
}
