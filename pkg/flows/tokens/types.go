package tokens

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

// TokenRequest is one token of an issue request. A nil amount issues a
// non-fungible token; an empty holder issues to the node itself.
type TokenRequest struct {
	TokenType token.Type       `json:"token_type"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Holder    string           `json:"holder,omitempty"`
}

// IssueRequest is the API request to issue tokens from this node
type IssueRequest struct {
	Tokens       []TokenRequest `json:"tokens"`
	Observers    []string       `json:"observers,omitempty"`
	Confidential bool           `json:"confidential"`
}

// MoveRequest is the API request to move tokens held by this node
type MoveRequest struct {
	TokenType    string           `json:"token_type,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	LinearID     string           `json:"linear_id,omitempty"`
	Recipient    string           `json:"recipient"`
	Observers    []string         `json:"observers,omitempty"`
	Confidential bool             `json:"confidential"`
}

// TransactionResponse describes a committed transaction
type TransactionResponse struct {
	TxID        string            `json:"tx_id"`
	Inputs      []ledger.StateRef `json:"inputs,omitempty"`
	Outputs     []token.Record    `json:"outputs"`
	CommittedAt time.Time         `json:"committed_at"`
}

// RecipientsResponse lists the distribution list of a token type
type RecipientsResponse struct {
	TokenType  string   `json:"token_type"`
	Recipients []string `json:"recipients"`
}

// BalanceResponse is the node's balance of a token type across issuers
type BalanceResponse struct {
	TokenType string          `json:"token_type"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecordResponse is the current version of a record
type RecordResponse struct {
	Ref    ledger.StateRef `json:"ref"`
	Record token.Record    `json:"record"`
}

func newTransactionResponse(tx *ledger.CommittedTransaction) *TransactionResponse {
	return &TransactionResponse{
		TxID:        tx.ID,
		Inputs:      tx.InputRefs(),
		Outputs:     tx.Proposal.Outputs,
		CommittedAt: tx.CommittedAt,
	}
}
