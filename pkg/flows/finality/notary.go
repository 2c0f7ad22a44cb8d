package finality

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// ErrConflict is returned when a proposal consumes an input another transaction
// already consumed.
var ErrConflict = errors.New("input already consumed")

// Notary orders transactions and prevents double spends
type Notary interface {
	Party() party.Party
	Notarise(ctx context.Context, proposal *ledger.Proposal) (ledger.Signature, error)
}

// LocalNotary is a uniqueness service run by the node itself. It only sees the
// transactions this node finalises.
type LocalNotary struct {
	key    *keys.KeyPair
	party  party.Party
	logger *zap.Logger

	mu       sync.Mutex
	consumed map[ledger.StateRef]string
}

// NewLocalNotary creates a notary signing with key under name
func NewLocalNotary(name string, key *keys.KeyPair, logger *zap.Logger) *LocalNotary {
	return &LocalNotary{
		key:      key,
		party:    party.WellKnown(name, key.PublicKey),
		logger:   logger,
		consumed: make(map[ledger.StateRef]string),
	}
}

// Party returns the notary identity proposals must name
func (n *LocalNotary) Party() party.Party {
	return n.party
}

// Notarise signs the proposal hash once every input is known to be unspent.
// Notarising the same proposal twice returns a fresh signature over the same id.
func (n *LocalNotary) Notarise(_ context.Context, proposal *ledger.Proposal) (ledger.Signature, error) {
	if proposal.Notary != n.party.ID {
		return ledger.Signature{}, fmt.Errorf("proposal names notary %s, not %s", proposal.Notary, n.party.ID)
	}
	hash, err := proposal.Hash()
	if err != nil {
		return ledger.Signature{}, err
	}
	txID := ledger.TxID(hash)

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, in := range proposal.Inputs {
		if spentBy, ok := n.consumed[in.Ref]; ok && spentBy != txID {
			return ledger.Signature{}, fmt.Errorf("%w: %s spent by %s", ErrConflict, in.Ref, spentBy)
		}
	}

	sig, err := n.key.SignHash(hash)
	if err != nil {
		return ledger.Signature{}, fmt.Errorf("failed to sign: %w", err)
	}
	for _, in := range proposal.Inputs {
		n.consumed[in.Ref] = txID
	}
	n.logger.Debug("notarised transaction", zap.String("tx_id", txID), zap.Int("inputs", len(proposal.Inputs)))
	return ledger.Signature{PublicKey: n.key.PublicKey, Signature: sig}, nil
}
