package saga

import (
	"time"

	"github.com/uptrace/bun"
)

// SagaDao is the database model for workflow runs
type SagaDao struct {
	bun.BaseModel `bun:"table:sagas,alias:sg"`
	ID            string    `bun:"id,pk,type:uuid"`
	Flow          string    `bun:"flow,notnull,type:varchar(64)"`
	Initiator     string    `bun:"initiator,type:varchar(255)"`
	Step          string    `bun:"step,notnull,type:varchar(32)"`
	Stage         *string   `bun:"stage,type:varchar(32)"`
	ErrorMessage  *string   `bun:"error_message,type:text"`
	TxID          *string   `bun:"tx_id,type:varchar(64)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toSagaDao(s *State) *SagaDao {
	return &SagaDao{
		ID:           s.ID,
		Flow:         s.Flow,
		Initiator:    s.Initiator,
		Step:         string(s.Step),
		Stage:        optional(string(s.Stage)),
		ErrorMessage: optional(s.Error),
		TxID:         optional(s.TxID),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func fromSagaDao(dao *SagaDao) *State {
	return &State{
		ID:        dao.ID,
		Flow:      dao.Flow,
		Initiator: dao.Initiator,
		Step:      Step(dao.Step),
		Stage:     Stage(deref(dao.Stage)),
		Error:     deref(dao.ErrorMessage),
		TxID:      deref(dao.TxID),
		CreatedAt: dao.CreatedAt,
		UpdatedAt: dao.UpdatedAt,
	}
}
