package vault

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

// TransactionDao is the database model for committed transactions
type TransactionDao struct {
	bun.BaseModel `bun:"table:transactions,alias:tx"`
	ID            string                       `bun:"id,pk,type:varchar(64)"`
	Visibility    string                       `bun:"visibility,notnull,type:varchar(16)"`
	Payload       *ledger.CommittedTransaction `bun:"payload,notnull,type:jsonb"`
	CommittedAt   time.Time                    `bun:"committed_at,notnull"`
	RecordedAt    time.Time                    `bun:"recorded_at,nullzero,notnull,default:current_timestamp"`
}

// StateDao is the database model for transaction outputs
type StateDao struct {
	bun.BaseModel `bun:"table:token_states,alias:ts"`
	TxID          string       `bun:"tx_id,pk,type:varchar(64)"`
	OutputIndex   int          `bun:"output_index,pk"`
	LinearID      string       `bun:"linear_id,notnull,type:varchar(64)"`
	TokenTypeID   string       `bun:"token_type_id,notnull,type:varchar(128)"`
	IssuerID      string       `bun:"issuer_id,notnull,type:varchar(255)"`
	HolderID      string       `bun:"holder_id,notnull,type:varchar(255)"`
	Amount        string       `bun:"amount,notnull,type:numeric(38,18)"`
	Fungible      bool         `bun:"fungible,notnull"`
	Relevant      bool         `bun:"relevant,notnull"`
	ConsumedBy    *string      `bun:"consumed_by,type:varchar(64)"`
	Record        token.Record `bun:"record,notnull,type:jsonb"`
	Seq           int64        `bun:"seq,autoincrement"`
	CreatedAt     time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toStateDao(sr ledger.StateAndRef, relevant bool) *StateDao {
	r := sr.Record
	return &StateDao{
		TxID:        sr.Ref.TxID,
		OutputIndex: sr.Ref.Index,
		LinearID:    r.LinearID,
		TokenTypeID: r.TokenType.ID,
		IssuerID:    r.Issuer.ID,
		HolderID:    r.Holder.ID,
		Amount:      r.Amount.String(),
		Fungible:    r.Fungible,
		Relevant:    relevant,
		Record:      r,
	}
}

func fromStateDao(dao *StateDao) ledger.StateAndRef {
	return ledger.StateAndRef{
		Ref:    ledger.StateRef{TxID: dao.TxID, Index: dao.OutputIndex},
		Record: dao.Record,
	}
}
