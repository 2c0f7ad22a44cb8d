// Package party models ledger identities. A well-known party is publicly bound
// to a name; an anonymous party is a fresh key whose owner only its
// counterparties learn.
package party

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
)

const (
	idSeparator   = "::"
	anonymousHint = "anon"
)

// ErrInvalidPartyID is returned for ids not shaped "hint::fingerprint"
var ErrInvalidPartyID = errors.New("invalid party id")

// Party is a ledger identity
type Party struct {
	ID        string `json:"id"`
	PublicKey []byte `json:"public_key"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// WellKnown builds the well-known party for name and its owning key
func WellKnown(name string, publicKey []byte) Party {
	return Party{
		ID:        name + idSeparator + keys.Fingerprint(publicKey),
		PublicKey: publicKey,
	}
}

// Anonymous builds an anonymous party for a freshly minted key
func Anonymous(publicKey []byte) Party {
	return Party{
		ID:        anonymousHint + idSeparator + keys.Fingerprint(publicKey),
		PublicKey: publicKey,
		Anonymous: true,
	}
}

// Equal compares parties by id
func (p Party) Equal(o Party) bool {
	return p.ID == o.ID
}

// IsZero reports whether p is unset
func (p Party) IsZero() bool {
	return p.ID == ""
}

// Name returns the hint part of the id
func (p Party) Name() string {
	hint, _, _ := ParseID(p.ID)
	return hint
}

func (p Party) String() string {
	return p.ID
}

// Validate checks the id format and that the fingerprint matches the key
func (p Party) Validate() error {
	hint, fingerprint, err := ParseID(p.ID)
	if err != nil {
		return err
	}
	if p.Anonymous != (hint == anonymousHint) {
		return fmt.Errorf("%w: %q anonymity flag does not match its hint", ErrInvalidPartyID, p.ID)
	}
	if len(p.PublicKey) == 0 {
		return nil
	}
	if err := keys.ValidatePublicKey(p.PublicKey); err != nil {
		return err
	}
	if !strings.EqualFold(fingerprint, keys.Fingerprint(p.PublicKey)) {
		return fmt.Errorf("%w: %q fingerprint does not match public key", ErrInvalidPartyID, p.ID)
	}
	return nil
}

// OwnsKey reports whether publicKey is the party's owning key
func (p Party) OwnsKey(publicKey []byte) bool {
	return len(p.PublicKey) > 0 && bytes.Equal(p.PublicKey, publicKey)
}

// ParseID splits "hint::fingerprint" and checks the fingerprint is hex
func ParseID(id string) (hint, fingerprint string, err error) {
	parts := strings.Split(id, idSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected 'hint::fingerprint', got %q", ErrInvalidPartyID, id)
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", fmt.Errorf("%w: fingerprint: %w", ErrInvalidPartyID, err)
	}
	return parts[0], parts[1], nil
}

// ValidateID checks that id is a well-formed party id
func ValidateID(id string) error {
	_, _, err := ParseID(id)
	return err
}

// Distinct returns parties with duplicates removed, keeping first-seen order
func Distinct(parties []Party) []Party {
	seen := make(map[string]struct{}, len(parties))
	out := make([]Party, 0, len(parties))
	for _, p := range parties {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Contains reports whether parties includes p
func Contains(parties []Party, p Party) bool {
	for _, q := range parties {
		if q.Equal(p) {
			return true
		}
	}
	return false
}
