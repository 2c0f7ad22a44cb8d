package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
)

var phases = map[Kind]int{
	KindActionRequest:       1,
	KindIdentityRequest:     2,
	KindIdentityResponse:    2,
	KindTransactionRole:     3,
	KindFinalityProposal:    4,
	KindFinalityPrepared:    4,
	KindFinalityTransaction: 5,
	KindFinalityAck:         5,
}

var oncePerDirection = map[Kind]bool{
	KindActionRequest:   true,
	KindTransactionRole: true,
}

type guarded struct {
	Session

	mu       sync.Mutex
	phase    int
	sent     map[Kind]int
	received map[Kind]int
}

// Guard enforces strict per-session ordering. Protocol phases only move forward
// across both directions, and an action request or transaction role may be sent
// and received at most once.
func Guard(s Session) Session {
	if _, ok := s.(*guarded); ok {
		return s
	}
	return &guarded{
		Session:  s,
		sent:     make(map[Kind]int),
		received: make(map[Kind]int),
	}
}

func (g *guarded) check(kind Kind, seen map[Kind]int, direction string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	phase, ok := phases[kind]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrUnexpectedMessage, direction, kind)
	}
	if phase < g.phase {
		return fmt.Errorf("%w: %s %s after a later protocol phase", ErrUnexpectedMessage, direction, kind)
	}
	if oncePerDirection[kind] && seen[kind] > 0 {
		return fmt.Errorf("%w: %s %s twice on session %s", ErrDuplicateMessage, direction, kind, g.ID())
	}
	g.phase = phase
	seen[kind]++
	return nil
}

func (g *guarded) Send(ctx context.Context, msg Message) error {
	if err := g.check(msg.Kind, g.sent, "sent"); err != nil {
		return err
	}
	if err := g.Session.Send(ctx, msg); err != nil {
		return err
	}
	metrics.SessionMessages.WithLabelValues("sent", string(msg.Kind)).Inc()
	return nil
}

func (g *guarded) Receive(ctx context.Context) (Message, error) {
	msg, err := g.Session.Receive(ctx)
	if err != nil {
		return Message{}, err
	}
	if err := g.check(msg.Kind, g.received, "received"); err != nil {
		return Message{}, err
	}
	metrics.SessionMessages.WithLabelValues("received", string(msg.Kind)).Inc()
	return msg, nil
}
