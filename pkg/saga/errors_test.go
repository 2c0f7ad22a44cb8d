package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainsafe/canton-token-flows/pkg/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"closed session", fmt.Errorf("receive: %w", session.ErrClosed), ErrSession},
		{"timeout", session.ErrTimeout, ErrSession},
		{"remote failure", &session.RemoteError{Message: "boom"}, ErrSession},
		{"unknown peer", session.ErrUnknownPeer, ErrSession},
		{"deadline", context.DeadlineExceeded, ErrSession},
		{"duplicate", session.ErrDuplicateMessage, ErrActionProtocol},
		{"out of order", session.ErrUnexpectedMessage, ErrActionProtocol},
		{"finality", fmt.Errorf("%w: notary rejected", ErrFinality), ErrFinality},
		{"finality over session", fmt.Errorf("%w: %w", ErrFinality, session.ErrClosed), ErrFinality},
		{"missing identity", ErrMissingAnonymousIdentity, ErrMissingAnonymousIdentity},
		{"other", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	cause := fmt.Errorf("receive identity: %w", session.ErrTimeout)
	err := Wrap("saga-1", StageIdentityExchange, cause)

	require.ErrorIs(t, err, ErrSession)
	require.ErrorIs(t, err, session.ErrTimeout)
	require.Contains(t, err.Error(), "identity-exchange failed")
	require.Equal(t, "session", KindName(err))

	stage, ok := StageOf(fmt.Errorf("issue: %w", err))
	require.True(t, ok)
	require.Equal(t, StageIdentityExchange, stage)

	// the first stage marker wins
	rewrapped := Wrap("saga-1", StageFinality, err)
	stage, _ = StageOf(rewrapped)
	require.Equal(t, StageIdentityExchange, stage)

	var se *Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, "identity-exchange", se.StageName())
	require.Equal(t, ErrSession, se.Kind())

	require.NoError(t, Wrap("saga-1", StageFinality, nil))
	_, ok = StageOf(errors.New("plain"))
	require.False(t, ok)
}
