// Package vault stores committed transactions and the token records they create,
// and answers the read queries flows depend on: current record by linear id,
// unconsumed records for selection and balances by token type.
package vault

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

// ErrNotFound is returned when a record or transaction is not in the vault
var ErrNotFound = errors.New("not found in vault")

// Visibility controls which outputs of a transaction are stored
type Visibility string

const (
	// RelevantOnly stores the outputs this node holds
	RelevantOnly Visibility = "RELEVANT"
	// AllVisible stores every output, flagging the ones this node holds
	AllVisible Visibility = "ALL_VISIBLE"
)

// Relevance reports whether this node holds r
type Relevance func(r token.Record) bool

// Vault is the node's store of committed ledger state
type Vault interface {
	// Record stores tx and marks its inputs consumed. Recording a transaction
	// twice is a no-op.
	Record(ctx context.Context, tx *ledger.CommittedTransaction, mode Visibility, relevant Relevance) error
	// FindCurrentRecord returns the latest unconsumed state with linearID
	FindCurrentRecord(ctx context.Context, linearID string) (*ledger.StateAndRef, error)
	// Unconsumed returns this node's unconsumed states of a token type, oldest
	// first, limited to holderIDs when any are given.
	Unconsumed(ctx context.Context, tokenTypeID string, holderIDs []string) ([]ledger.StateAndRef, error)
	// SumBalance totals this node's unconsumed fungible amounts of a token type
	// across every issuer.
	SumBalance(ctx context.Context, tokenTypeID string) (decimal.Decimal, error)
	Transaction(ctx context.Context, id string) (*ledger.CommittedTransaction, error)
}

func containsID(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
