// Package ledger builds transaction proposals from token records and models the
// committed transactions that finality produces.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

// ErrInvalidProposal is returned when records cannot form a valid transaction
var ErrInvalidProposal = errors.New("invalid proposal")

// CommandKind is the intent of a command group
type CommandKind string

const (
	Issue CommandKind = "ISSUE"
	Move  CommandKind = "MOVE"
)

// Command covers every input and output of one (token type, issuer) group
type Command struct {
	Kind       CommandKind      `json:"kind"`
	IssuedType token.IssuedType `json:"issued_type"`
	Signers    []party.Party    `json:"signers"`
}

// StateRef points at an output of a committed transaction
type StateRef struct {
	TxID  string `json:"tx_id"`
	Index int    `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

// StateAndRef is a record together with where it was created
type StateAndRef struct {
	Ref    StateRef     `json:"ref"`
	Record token.Record `json:"record"`
}

// Proposal is an unsigned transaction
type Proposal struct {
	ID        string         `json:"id"`
	Notary    string         `json:"notary"`
	Inputs    []StateAndRef  `json:"inputs"`
	Outputs   []token.Record `json:"outputs"`
	Commands  []Command      `json:"commands"`
	CreatedAt time.Time      `json:"created_at"`
}

type group struct {
	issued  token.IssuedType
	inputs  []StateAndRef
	outputs []token.Record
}

// groupRecords groups inputs and outputs by issued type in first-seen order
func groupRecords(inputs []StateAndRef, outputs []token.Record) []*group {
	var order []*group
	byKey := make(map[string]*group)
	get := func(it token.IssuedType) *group {
		g, ok := byKey[it.Key()]
		if !ok {
			g = &group{issued: it}
			byKey[it.Key()] = g
			order = append(order, g)
		}
		return g
	}
	for _, in := range inputs {
		g := get(in.Record.IssuedType())
		g.inputs = append(g.inputs, in)
	}
	for _, out := range outputs {
		g := get(out.IssuedType())
		g.outputs = append(g.outputs, out)
	}
	return order
}

func newProposal(notary string, inputs []StateAndRef, outputs []token.Record, commands []Command) *Proposal {
	return &Proposal{
		ID:        uuid.NewString(),
		Notary:    notary,
		Inputs:    inputs,
		Outputs:   outputs,
		Commands:  commands,
		CreatedAt: time.Now().UTC(),
	}
}

// NewIssueProposal creates a proposal issuing records, with one ISSUE command per
// (token type, issuer) group signed by the issuer.
func NewIssueProposal(notary string, records []token.Record) (*Proposal, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: nothing to issue", ErrInvalidProposal)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProposal, err)
		}
	}

	groups := groupRecords(nil, records)
	commands := make([]Command, 0, len(groups))
	for _, g := range groups {
		commands = append(commands, Command{
			Kind:       Issue,
			IssuedType: g.issued,
			Signers:    []party.Party{g.issued.Issuer},
		})
	}
	return newProposal(notary, nil, records, commands), nil
}

// NewMoveProposal creates a proposal consuming inputs and producing outputs, with one
// MOVE command per group signed by the holders of the consumed records.
func NewMoveProposal(notary string, inputs []StateAndRef, outputs []token.Record) (*Proposal, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: a move needs inputs and outputs", ErrInvalidProposal)
	}
	seen := make(map[StateRef]struct{}, len(inputs))
	for _, in := range inputs {
		if _, dup := seen[in.Ref]; dup {
			return nil, fmt.Errorf("%w: input %s listed twice", ErrInvalidProposal, in.Ref)
		}
		seen[in.Ref] = struct{}{}
	}
	for _, r := range outputs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProposal, err)
		}
	}

	groups := groupRecords(inputs, outputs)
	commands := make([]Command, 0, len(groups))
	for _, g := range groups {
		if len(g.inputs) == 0 {
			return nil, fmt.Errorf("%w: %s has outputs but no inputs", ErrInvalidProposal, g.issued.Key())
		}
		if len(g.outputs) == 0 {
			return nil, fmt.Errorf("%w: %s has inputs but no outputs", ErrInvalidProposal, g.issued.Key())
		}
		if err := checkConservation(g); err != nil {
			return nil, err
		}

		signers := make([]party.Party, 0, len(g.inputs))
		for _, in := range g.inputs {
			signers = append(signers, in.Record.Holder)
		}
		commands = append(commands, Command{
			Kind:       Move,
			IssuedType: g.issued,
			Signers:    party.Distinct(signers),
		})
	}
	return newProposal(notary, inputs, outputs, commands), nil
}

func checkConservation(g *group) error {
	in, out := decimal.Zero, decimal.Zero
	for _, s := range g.inputs {
		in = in.Add(s.Record.Amount)
	}
	for _, r := range g.outputs {
		out = out.Add(r.Amount)
	}
	if !in.Equal(out) {
		return fmt.Errorf("%w: %s moves %s in but %s out", ErrInvalidProposal, g.issued.Key(), in, out)
	}
	return nil
}

// Participants returns the distinct holders of inputs and outputs
func (p *Proposal) Participants() []party.Party {
	all := make([]party.Party, 0, len(p.Inputs)+len(p.Outputs))
	for _, in := range p.Inputs {
		all = append(all, in.Record.Holder)
	}
	for _, out := range p.Outputs {
		all = append(all, out.Holder)
	}
	return party.Distinct(all)
}

// RequiredSigners returns the distinct signers across commands
func (p *Proposal) RequiredSigners() []party.Party {
	var all []party.Party
	for _, c := range p.Commands {
		all = append(all, c.Signers...)
	}
	return party.Distinct(all)
}

// TokenTypes returns the token type ids touched by commands of kind
func (p *Proposal) TokenTypes(kind CommandKind) map[string]struct{} {
	types := make(map[string]struct{})
	for _, c := range p.Commands {
		if c.Kind == kind {
			types[c.IssuedType.Type.ID] = struct{}{}
		}
	}
	return types
}

// Hash returns the keccak256 digest of the proposal's JSON encoding
func (p *Proposal) Hash() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proposal: %w", err)
	}
	return crypto.Keccak256(b), nil
}
