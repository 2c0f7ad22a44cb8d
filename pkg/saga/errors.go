// Package saga holds the workflow state machine shared by issuance and move flows:
// named steps, the stage markers attached to failures, the failure taxonomy and a
// store recording every run.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainsafe/canton-token-flows/pkg/session"
)

var (
	// ErrSession is a missing session for a required participant, or a session that
	// dropped or timed out mid-protocol.
	ErrSession = errors.New("session error")
	// ErrMissingAnonymousIdentity is a holder that produced no anonymous identity
	ErrMissingAnonymousIdentity = errors.New("missing anonymous identity")
	// ErrActionProtocol is an out-of-order or unexpected message on a session
	ErrActionProtocol = errors.New("action protocol error")
	// ErrFinality is a failure reported by the finality sub-protocol
	ErrFinality = errors.New("finality error")
)

// Stage marks the part of a workflow a failure happened in
type Stage string

const (
	StageIdentityExchange Stage = "identity-exchange"
	StageRoleNegotiation  Stage = "role-negotiation"
	StageFinality         Stage = "finality"
	StageDistributionSync Stage = "distribution-sync"
)

// Error is a workflow failure with its stage marker
type Error struct {
	SagaID string
	Stage  Stage
	Err    error
}

// Wrap attaches a stage marker to err. Errors that already carry one keep it.
func Wrap(sagaID string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{SagaID: sagaID, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both the cause and its taxonomy kind to errors.Is
func (e *Error) Unwrap() []error {
	if kind := Classify(e.Err); kind != nil {
		return []error{e.Err, kind}
	}
	return []error{e.Err}
}

// StageName returns the stage marker; transports use it to report remote failures
func (e *Error) StageName() string {
	return string(e.Stage)
}

// Kind returns the taxonomy sentinel of the failure, or nil when it has none
func (e *Error) Kind() error {
	return Classify(e.Err)
}

// Classify maps err onto the failure taxonomy
func Classify(err error) error {
	for _, kind := range []error{ErrMissingAnonymousIdentity, ErrFinality, ErrActionProtocol, ErrSession} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	switch {
	case errors.Is(err, session.ErrUnexpectedMessage), errors.Is(err, session.ErrDuplicateMessage):
		return ErrActionProtocol
	case errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrTimeout),
		errors.Is(err, session.ErrUnknownFlow),
		errors.Is(err, session.ErrUnknownPeer),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrSession
	}
	return nil
}

// KindName is a short label for the taxonomy kind of err
func KindName(err error) string {
	switch Classify(err) {
	case ErrSession:
		return "session"
	case ErrMissingAnonymousIdentity:
		return "missing_anonymous_identity"
	case ErrActionProtocol:
		return "action_protocol"
	case ErrFinality:
		return "finality"
	default:
		return "other"
	}
}

// StageOf returns the stage marker carried by err, if any
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}
