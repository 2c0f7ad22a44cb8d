// Package session provides the bidirectional, strictly ordered message channel
// that flows use to talk to one counterparty, and the transports that carry it.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

var (
	// ErrClosed is returned once either end has closed the session
	ErrClosed = errors.New("session closed")
	// ErrTimeout is returned when the counterparty does not answer in time
	ErrTimeout = errors.New("session timed out")
	// ErrUnexpectedMessage is returned for out-of-order messages or a wrong message kind
	ErrUnexpectedMessage = errors.New("unexpected session message")
	// ErrDuplicateMessage is returned when a once-per-session message is repeated
	ErrDuplicateMessage = errors.New("duplicate session message")
	// ErrUnknownFlow is returned when the counterparty has no responder for a flow
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrUnknownPeer is returned when no route to the counterparty exists
	ErrUnknownPeer = errors.New("unknown peer")
)

// Session is a message channel to a single counterparty
type Session interface {
	ID() string
	Counterparty() party.Party
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Initiator opens sessions to counterparties running the responder of flow
type Initiator interface {
	InitiateFlow(ctx context.Context, flow string, counterparty party.Party) (Session, error)
}

// RemoteError is the failure reported by the counterparty's responder
type RemoteError struct {
	Stage   string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Stage == "" {
		return "counterparty failed: " + e.Message
	}
	return fmt.Sprintf("counterparty failed at %s: %s", e.Stage, e.Message)
}

// Unwrap makes a remote failure read as a closed session
func (e *RemoteError) Unwrap() error {
	return ErrClosed
}

// stager is implemented by errors that carry a workflow stage marker
type stager interface {
	StageName() string
}

// remoteError converts a responder failure into what the initiator observes
func remoteError(err error) *RemoteError {
	if err == nil {
		return nil
	}
	re := &RemoteError{Message: err.Error()}
	var s stager
	if errors.As(err, &s) {
		re.Stage = s.StageName()
	}
	return re
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrClosed, ctx.Err())
}

// CloseAll closes every session, returning the first error
func CloseAll(sessions []Session) error {
	var first error
	for _, s := range sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
