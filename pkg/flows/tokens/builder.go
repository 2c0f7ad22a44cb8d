package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

var (
	// ErrNotIssuer is returned when a node is asked to issue tokens on behalf of another party
	ErrNotIssuer = errors.New("node is not the issuer")
	// ErrNotHolder is returned when a node is asked to move a record it does not hold
	ErrNotHolder = errors.New("node does not hold the record")
	// ErrInsufficientBalance is returned when unconsumed records cannot cover a move
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidMove is returned for a malformed MoveSpec
	ErrInvalidMove = errors.New("invalid move")
)

// MoveSpec describes a move initiated by this node. Either Amount units of a
// fungible token type or the whole record with LinearID go to Recipient.
type MoveSpec struct {
	TokenTypeID string
	Amount      *decimal.Decimal
	LinearID    string
	Recipient   party.Party
	Observers   []party.Party
}

func (s MoveSpec) validate() error {
	if err := s.Recipient.Validate(); err != nil {
		return fmt.Errorf("%w: recipient: %w", ErrInvalidMove, err)
	}
	switch {
	case s.LinearID == "" && s.Amount == nil:
		return fmt.Errorf("%w: either an amount or a linear id is required", ErrInvalidMove)
	case s.LinearID != "" && s.Amount != nil:
		return fmt.Errorf("%w: amount and linear id are mutually exclusive", ErrInvalidMove)
	case s.Amount != nil && s.TokenTypeID == "":
		return fmt.Errorf("%w: token type is required to move an amount", ErrInvalidMove)
	case s.Amount != nil && !s.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidMove)
	}
	for _, o := range s.Observers {
		if err := o.Validate(); err != nil || o.Anonymous {
			return fmt.Errorf("%w: observer %s must be a well-known party", ErrInvalidMove, o)
		}
	}
	return nil
}

// IssueTokens issues the tokens described by specs. Sessions are opened to
// every holder other than the node and to every observer, and closed when the
// workflow ends. The node must be the issuer of every spec.
func (o *Orchestrator) IssueTokens(ctx context.Context, confidential bool, specs ...token.Spec) (*ledger.CommittedTransaction, error) {
	batch, err := token.Build(specs...)
	if err != nil {
		return nil, err
	}
	for _, r := range batch.Records {
		if !r.Issuer.Equal(o.Self) {
			return nil, fmt.Errorf("%w: %s cannot issue as %s", ErrNotIssuer, o.Self, r.Issuer)
		}
	}

	flow := FlowIssue
	if confidential {
		flow = FlowConfidentialIssue
	}
	return o.run(ctx, &workflow{
		flow:         flow,
		confidential: confidential,
		outputs:      batch.Records,
		derive:       true,
		observers:    batch.Observers,
	})
}

// MoveTokens moves tokens held by the node as described by spec, opening
// sessions the same way IssueTokens does.
func (o *Orchestrator) MoveTokens(ctx context.Context, confidential bool, spec MoveSpec) (*ledger.CommittedTransaction, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var (
		inputs  []ledger.StateAndRef
		outputs []token.Record
		err     error
	)
	if spec.LinearID != "" {
		inputs, outputs, err = o.selectRecord(ctx, spec)
	} else {
		var states []ledger.StateAndRef
		states, err = o.Vault.Unconsumed(ctx, spec.TokenTypeID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load unconsumed records: %w", err)
		}
		inputs, outputs, err = SelectFungible(states, *spec.Amount, spec.Recipient)
	}
	if err != nil {
		return nil, err
	}

	flow := FlowMove
	if confidential {
		flow = FlowConfidentialMove
	}
	return o.run(ctx, &workflow{
		flow:         flow,
		confidential: confidential,
		inputs:       inputs,
		outputs:      outputs,
		derive:       true,
		observers:    party.Distinct(spec.Observers),
	})
}

func (o *Orchestrator) selectRecord(ctx context.Context, spec MoveSpec) ([]ledger.StateAndRef, []token.Record, error) {
	current, err := o.Vault.FindCurrentRecord(ctx, spec.LinearID)
	if err != nil {
		return nil, nil, err
	}
	if spec.TokenTypeID != "" && current.Record.TokenType.ID != spec.TokenTypeID {
		return nil, nil, fmt.Errorf("%w: record %s is of type %s", ErrInvalidMove, spec.LinearID, current.Record.TokenType.ID)
	}
	owned, err := o.Wallet.Owns(ctx, current.Record.Holder.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check record ownership: %w", err)
	}
	if !owned {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotHolder, spec.LinearID)
	}
	return []ledger.StateAndRef{*current}, []token.Record{current.Record.WithHolder(spec.Recipient)}, nil
}

// SelectFungible picks states of a single issued type, oldest first, until they
// cover amount. It returns the picked states, an output of amount for recipient
// and, when the picked states exceed amount, a change output back to the holder
// of the first picked state.
func SelectFungible(states []ledger.StateAndRef, amount decimal.Decimal, recipient party.Party) ([]ledger.StateAndRef, []token.Record, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidMove)
	}

	var order []string
	groups := make(map[string][]ledger.StateAndRef)
	totals := make(map[string]decimal.Decimal)
	for _, s := range states {
		if !s.Record.Fungible {
			continue
		}
		key := s.Record.IssuedType().Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			totals[key] = decimal.Zero
		}
		groups[key] = append(groups[key], s)
		totals[key] = totals[key].Add(s.Record.Amount)
	}

	for _, key := range order {
		if totals[key].LessThan(amount) {
			continue
		}
		var (
			picked []ledger.StateAndRef
			sum    = decimal.Zero
		)
		for _, s := range groups[key] {
			picked = append(picked, s)
			sum = sum.Add(s.Record.Amount)
			if sum.GreaterThanOrEqual(amount) {
				break
			}
		}

		first := picked[0].Record
		outputs := []token.Record{first.WithHolder(recipient).WithAmount(amount)}
		if change := sum.Sub(amount); change.IsPositive() {
			outputs = append(outputs, first.WithAmount(change))
		}
		return picked, outputs, nil
	}
	return nil, nil, fmt.Errorf("%w: need %s", ErrInsufficientBalance, amount)
}
