// Package token defines token types and the immutable token records held on the ledger.
package token

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// Type identifies a kind of token. Records of the same Type and issuer are fungible
// with each other when they carry an amount.
type Type struct {
	ID             string `json:"id" validate:"required,max=128,printascii"`
	FractionDigits int32  `json:"fraction_digits" validate:"min=0,max=18"`
}

// IssuedType is a token type qualified by its issuer
type IssuedType struct {
	Type   Type        `json:"type"`
	Issuer party.Party `json:"issuer"`
}

// IssuedBy qualifies t with an issuer
func (t Type) IssuedBy(issuer party.Party) IssuedType {
	return IssuedType{Type: t, Issuer: issuer}
}

// Key is the grouping key of records issued by the same party for the same type
func (it IssuedType) Key() string {
	return it.Type.ID + "|" + it.Issuer.ID
}

// Record is a single token state. Records are never mutated; a move consumes
// records and produces new ones.
type Record struct {
	LinearID  string          `json:"linear_id"`
	TokenType Type            `json:"token_type"`
	Issuer    party.Party     `json:"issuer"`
	Holder    party.Party     `json:"holder"`
	Amount    decimal.Decimal `json:"amount"`
	Fungible  bool            `json:"fungible"`
}

// NewFungible builds a fungible record of amount units
func NewFungible(tt Type, amount decimal.Decimal, issuer, holder party.Party) Record {
	return Record{
		LinearID:  uuid.NewString(),
		TokenType: tt,
		Issuer:    issuer,
		Holder:    holder,
		Amount:    amount,
		Fungible:  true,
	}
}

// NewNonFungible builds a unique token instance
func NewNonFungible(tt Type, issuer, holder party.Party) Record {
	return Record{
		LinearID:  uuid.NewString(),
		TokenType: tt,
		Issuer:    issuer,
		Holder:    holder,
	}
}

// WithHolder returns a copy of r held by holder. Non-fungible records keep their
// linear id across holders.
func (r Record) WithHolder(holder party.Party) Record {
	r.Holder = holder
	return r
}

// WithAmount returns a copy of a fungible record carrying amount under a fresh id
func (r Record) WithAmount(amount decimal.Decimal) Record {
	r.Amount = amount
	r.LinearID = uuid.NewString()
	return r
}

// IssuedType returns the record's type qualified by issuer
func (r Record) IssuedType() IssuedType {
	return r.TokenType.IssuedBy(r.Issuer)
}

// Validate checks record invariants
func (r Record) Validate() error {
	if r.LinearID == "" {
		return fmt.Errorf("record has no linear id")
	}
	if r.TokenType.ID == "" {
		return fmt.Errorf("record %s has no token type", r.LinearID)
	}
	if r.Issuer.IsZero() || r.Holder.IsZero() {
		return fmt.Errorf("record %s must have an issuer and a holder", r.LinearID)
	}
	if r.Issuer.Anonymous {
		return fmt.Errorf("record %s issuer must be a well-known party", r.LinearID)
	}
	if !r.Fungible {
		if !r.Amount.IsZero() {
			return fmt.Errorf("non-fungible record %s carries an amount", r.LinearID)
		}
		return nil
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("record %s amount must be positive, got %s", r.LinearID, r.Amount)
	}
	if !r.Amount.Equal(r.Amount.Truncate(r.TokenType.FractionDigits)) {
		return fmt.Errorf("record %s amount %s exceeds %d fraction digits", r.LinearID, r.Amount, r.TokenType.FractionDigits)
	}
	return nil
}

// Holders returns the distinct holders of records in first-seen order
func Holders(records []Record) []party.Party {
	holders := make([]party.Party, 0, len(records))
	for _, r := range records {
		holders = append(holders, r.Holder)
	}
	return party.Distinct(holders)
}
