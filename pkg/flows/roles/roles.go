// Package roles tells every session counterparty whether it takes part in a
// proposed transaction or only observes it.
package roles

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
)

// Role is a counterparty's part in a transaction
type Role string

const (
	Participant Role = "PARTICIPANT"
	Observer    Role = "OBSERVER"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == Participant || r == Observer
}

// RoledSession is a session whose counterparty has been told its role
type RoledSession struct {
	Session session.Session
	Role    Role
}

// Negotiator classifies and notifies session counterparties
type Negotiator struct {
	self     party.Party
	registry party.Registry
	logger   *zap.Logger
}

// NewNegotiator creates a Negotiator for the node identity self
func NewNegotiator(self party.Party, registry party.Registry, logger *zap.Logger) *Negotiator {
	return &Negotiator{self: self, registry: registry, logger: logger}
}

// Negotiate sends PARTICIPANT to every counterparty whose well-known identity
// holds an input or output of proposal and OBSERVER to all others. Every
// participant other than the node itself must have a session; nothing is sent
// when one is missing.
func (n *Negotiator) Negotiate(ctx context.Context, proposal *ledger.Proposal, sessions []session.Session) ([]RoledSession, error) {
	participants, err := n.wellKnownParticipants(ctx, proposal)
	if err != nil {
		return nil, err
	}

	bySession := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		bySession[s.Counterparty().ID] = struct{}{}
	}
	for id := range participants {
		if id == n.self.ID {
			continue
		}
		if _, ok := bySession[id]; !ok {
			return nil, fmt.Errorf("%w: participant %s has no session", saga.ErrSession, id)
		}
	}

	roled := make([]RoledSession, 0, len(sessions))
	for _, s := range sessions {
		cp := s.Counterparty()
		if cp.Equal(n.self) {
			continue
		}
		role := Observer
		if _, ok := participants[cp.ID]; ok {
			role = Participant
		}
		if err := session.SendValue(ctx, s, session.KindTransactionRole, role); err != nil {
			return nil, fmt.Errorf("send role to %s: %w", cp, err)
		}
		n.logger.Debug("sent transaction role",
			zap.String("proposal_id", proposal.ID),
			zap.String("counterparty", cp.ID),
			zap.String("role", string(role)))
		roled = append(roled, RoledSession{Session: s, Role: role})
	}
	return roled, nil
}

func (n *Negotiator) wellKnownParticipants(ctx context.Context, proposal *ledger.Proposal) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, p := range proposal.Participants() {
		wk, err := n.registry.WellKnown(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve participant %s: %w", saga.ErrSession, p, err)
		}
		out[wk.ID] = struct{}{}
	}
	return out, nil
}

// ReceiveRole is the responder side: it reads the role the initiator assigned
func ReceiveRole(ctx context.Context, sess session.Session) (Role, error) {
	role, err := session.ReceiveValue[Role](ctx, sess, session.KindTransactionRole)
	if err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown transaction role %q", saga.ErrActionProtocol, role)
	}
	return role, nil
}
