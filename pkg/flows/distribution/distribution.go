// Package distribution keeps the per token type list of holders that are entitled
// to future updates. The list only grows: a holder that disposes of every token of
// a type stays on it.
package distribution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

const (
	opAdd    = "add"
	opUpdate = "update"
)

// Recipient is one distribution record
type Recipient struct {
	TokenTypeID string
	Holder      party.Party
}

// Registry stores distribution records with insert-if-absent semantics. Both
// methods return how many records were inserted.
type Registry interface {
	// AddRecipients records the holders of newly issued records
	AddRecipients(ctx context.Context, records []token.Record) (int, error)
	// UpdateRecipients records the new holders of moved records. Earlier holders are kept.
	UpdateRecipients(ctx context.Context, records []token.Record) (int, error)
	ListRecipients(ctx context.Context, tokenTypeID string) ([]party.Party, error)
}

// recipients returns the distinct (token type, holder) pairs of records in first-seen order
func recipients(records []token.Record) []Recipient {
	seen := make(map[string]struct{}, len(records))
	out := make([]Recipient, 0, len(records))
	for _, r := range records {
		key := r.TokenType.ID + "|" + r.Holder.ID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Recipient{TokenTypeID: r.TokenType.ID, Holder: r.Holder})
	}
	return out
}

// Synchronizer updates the registry from committed transactions
type Synchronizer struct {
	registry Registry
	logger   *zap.Logger
}

// NewSynchronizer creates a Synchronizer
func NewSynchronizer(registry Registry, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{registry: registry, logger: logger}
}

// Sync adds the holders of outputs whose token type was issued by tx and updates
// the list with the holders of outputs whose token type was moved. It must only
// be called once tx is final.
func (s *Synchronizer) Sync(ctx context.Context, tx *ledger.CommittedTransaction) error {
	issueTypes := tx.Proposal.TokenTypes(ledger.Issue)
	moveTypes := tx.Proposal.TokenTypes(ledger.Move)

	var issued, moved []token.Record
	for _, out := range tx.Proposal.Outputs {
		if _, ok := issueTypes[out.TokenType.ID]; ok {
			issued = append(issued, out)
		}
		if _, ok := moveTypes[out.TokenType.ID]; ok {
			moved = append(moved, out)
		}
	}

	if len(issued) > 0 {
		n, err := s.registry.AddRecipients(ctx, issued)
		if err != nil {
			return fmt.Errorf("add recipients: %w", err)
		}
		metrics.RecipientsAdded.WithLabelValues(opAdd).Add(float64(n))
	}
	if len(moved) > 0 {
		n, err := s.registry.UpdateRecipients(ctx, moved)
		if err != nil {
			return fmt.Errorf("update recipients: %w", err)
		}
		metrics.RecipientsAdded.WithLabelValues(opUpdate).Add(float64(n))
	}

	s.logger.Debug("distribution list synchronised",
		zap.String("tx_id", tx.ID),
		zap.Int("issued_outputs", len(issued)),
		zap.Int("moved_outputs", len(moved)))
	return nil
}
