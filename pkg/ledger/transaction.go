package ledger

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// ErrInvalidTransaction is returned when a committed transaction fails verification
var ErrInvalidTransaction = errors.New("invalid transaction")

// Signature is a signature over a transaction id
type Signature struct {
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// CommittedTransaction is a proposal signed by its required signers and the notary
type CommittedTransaction struct {
	ID              string      `json:"id"`
	Proposal        Proposal    `json:"proposal"`
	Signatures      []Signature `json:"signatures"`
	NotarySignature Signature   `json:"notary_signature"`
	CommittedAt     time.Time   `json:"committed_at"`
}

// TxID derives the transaction id from a proposal hash
func TxID(hash []byte) string {
	return hex.EncodeToString(hash)
}

// IDBytes returns the raw transaction hash that signatures cover
func (t *CommittedTransaction) IDBytes() ([]byte, error) {
	return hex.DecodeString(t.ID)
}

// OutputRef returns the reference to output i
func (t *CommittedTransaction) OutputRef(i int) StateRef {
	return StateRef{TxID: t.ID, Index: i}
}

// OutputStates returns every output with its reference
func (t *CommittedTransaction) OutputStates() []StateAndRef {
	out := make([]StateAndRef, len(t.Proposal.Outputs))
	for i, r := range t.Proposal.Outputs {
		out[i] = StateAndRef{Ref: t.OutputRef(i), Record: r}
	}
	return out
}

// InputRefs returns the references consumed by the transaction
func (t *CommittedTransaction) InputRefs() []StateRef {
	refs := make([]StateRef, len(t.Proposal.Inputs))
	for i, in := range t.Proposal.Inputs {
		refs[i] = in.Ref
	}
	return refs
}

// VerifySignatures checks the id matches the proposal and that every required
// signer signed it. The notary signature is not looked at, so it also holds for
// a transaction that has not been notarised yet.
func (t *CommittedTransaction) VerifySignatures() error {
	_, err := t.verifySignatures()
	return err
}

func (t *CommittedTransaction) verifySignatures() ([]byte, error) {
	hash, err := t.Proposal.Hash()
	if err != nil {
		return nil, err
	}
	if TxID(hash) != t.ID {
		return nil, fmt.Errorf("%w: id does not match proposal", ErrInvalidTransaction)
	}
	for _, signer := range t.Proposal.RequiredSigners() {
		if !t.signedBy(signer, hash) {
			return nil, fmt.Errorf("%w: missing signature from %s", ErrInvalidTransaction, signer)
		}
	}
	return hash, nil
}

// Verify checks the id matches the proposal, that every required signer signed it
// and that the notary named by the proposal signed it. A non-empty notaryKey
// additionally pins the notary key.
func (t *CommittedTransaction) Verify(notaryKey []byte) error {
	hash, err := t.verifySignatures()
	if err != nil {
		return err
	}

	ns := t.NotarySignature
	if len(notaryKey) > 0 && !bytes.Equal(ns.PublicKey, notaryKey) {
		return fmt.Errorf("%w: notarised by an unexpected key", ErrInvalidTransaction)
	}
	_, fingerprint, err := party.ParseID(t.Proposal.Notary)
	if err != nil {
		return fmt.Errorf("%w: notary: %w", ErrInvalidTransaction, err)
	}
	if !strings.EqualFold(fingerprint, keys.Fingerprint(ns.PublicKey)) {
		return fmt.Errorf("%w: not notarised by %s", ErrInvalidTransaction, t.Proposal.Notary)
	}
	if !keys.VerifyHash(ns.PublicKey, hash, ns.Signature) {
		return fmt.Errorf("%w: invalid notary signature", ErrInvalidTransaction)
	}
	return nil
}

func (t *CommittedTransaction) signedBy(p party.Party, hash []byte) bool {
	for _, s := range t.Signatures {
		if p.OwnsKey(s.PublicKey) && keys.VerifyHash(s.PublicKey, hash, s.Signature) {
			return true
		}
	}
	return false
}
