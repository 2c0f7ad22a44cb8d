package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// ErrInvalidSpec is returned when a Spec fails validation
var ErrInvalidSpec = errors.New("invalid token spec")

// Spec describes tokens to issue. Every issuance shape (fungible or not, explicit
// holder or issue-to-self, with or without observers) is expressed as a Spec.
type Spec struct {
	TokenType Type `validate:"required"`
	// Amount is nil for a non-fungible token.
	Amount *decimal.Decimal
	Issuer party.Party
	// Holder defaults to Issuer.
	Holder    *party.Party
	Observers []party.Party
}

// Batch is the normalised form of a set of Specs
type Batch struct {
	Records   []Record
	Observers []party.Party
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func specValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateSpec, Spec{})
	})
	return validate
}

func validateSpec(sl validator.StructLevel) {
	s := sl.Current().Interface().(Spec)

	if s.Amount != nil && !s.Amount.IsPositive() {
		sl.ReportError(s.Amount, "Amount", "Amount", "gt0", "")
	}
	if err := s.Issuer.Validate(); err != nil || s.Issuer.Anonymous {
		sl.ReportError(s.Issuer, "Issuer", "Issuer", "wellknownparty", "")
	}
	if s.Holder != nil {
		if err := s.Holder.Validate(); err != nil {
			sl.ReportError(s.Holder, "Holder", "Holder", "party", "")
		}
	}
	for i, o := range s.Observers {
		if err := o.Validate(); err != nil || o.Anonymous {
			sl.ReportError(o, fmt.Sprintf("Observers[%d]", i), "Observers", "wellknownparty", "")
		}
	}
}

// Validate checks a single Spec
func (s Spec) Validate() error {
	if err := specValidator().Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	if s.Amount != nil && !s.Amount.Equal(s.Amount.Truncate(s.TokenType.FractionDigits)) {
		return fmt.Errorf("%w: amount %s exceeds %d fraction digits", ErrInvalidSpec, s.Amount, s.TokenType.FractionDigits)
	}
	return nil
}

// Build validates specs and produces their records and the union of observers.
func Build(specs ...Spec) (*Batch, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no tokens requested", ErrInvalidSpec)
	}

	batch := &Batch{Records: make([]Record, 0, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}

		holder := s.Issuer
		if s.Holder != nil {
			holder = *s.Holder
		}

		if s.Amount != nil {
			batch.Records = append(batch.Records, NewFungible(s.TokenType, *s.Amount, s.Issuer, holder))
		} else {
			batch.Records = append(batch.Records, NewNonFungible(s.TokenType, s.Issuer, holder))
		}
		batch.Observers = append(batch.Observers, s.Observers...)
	}
	batch.Observers = party.Distinct(batch.Observers)
	return batch, nil
}
