package tokens

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/canton-token-flows/pkg/app/errors"
	"github.com/chainsafe/canton-token-flows/pkg/flows/finality"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
)

func TestService_IssueAndQuery(t *testing.T) {
	ctx := testContext(t)
	n := newNetwork(t)
	alice, bob, carol := n.join(t, "alice", nil), n.join(t, "bob", nil), n.join(t, "carol", nil)
	svc := NewService(alice.orch, alice.registry, alice.recipients, alice.vault)

	resp, err := svc.Issue(ctx, &IssueRequest{
		Tokens: []TokenRequest{
			{TokenType: tokenX, Amount: amount(100), Holder: bob.party.ID},
			{TokenType: tokenX, Amount: amount(20)},
		},
		Observers:    []string{carol.party.ID},
		Confidential: true,
	})
	require.NoError(t, err)
	n.local.Wait()
	require.Len(t, resp.Outputs, 2)
	require.True(t, resp.Outputs[0].Holder.Anonymous)
	require.True(t, resp.Outputs[1].Holder.Anonymous, "records issued to self are re-keyed too")

	recipients, err := svc.Recipients(ctx, "X")
	require.NoError(t, err)
	require.Equal(t, []string{resp.Outputs[0].Holder.ID, resp.Outputs[1].Holder.ID}, recipients.Recipients)

	balance, err := svc.Balance(ctx, "X")
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(decimal.NewFromInt(20)), balance.Amount.String())

	record, err := svc.Record(ctx, resp.Outputs[1].LinearID)
	require.NoError(t, err)
	require.Equal(t, resp.TxID, record.Ref.TxID)

	moved, err := svc.Move(ctx, &MoveRequest{TokenType: "X", Amount: amount(15), Recipient: carol.party.ID})
	require.NoError(t, err)
	n.local.Wait()
	require.Len(t, moved.Inputs, 1)

	balance, err = svc.Balance(ctx, "X")
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(decimal.NewFromInt(5)), balance.Amount.String())
}

func TestService_RejectsBadRequests(t *testing.T) {
	ctx := testContext(t)
	n := newNetwork(t)
	alice := n.join(t, "alice", nil)
	svc := NewService(alice.orch, alice.registry, alice.recipients, alice.vault)

	_, err := svc.Issue(ctx, &IssueRequest{})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)

	_, err = svc.Issue(ctx, &IssueRequest{Tokens: []TokenRequest{{TokenType: tokenX, Amount: amount(1), Holder: "not-a-party"}}})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)

	_, err = svc.Issue(ctx, &IssueRequest{Tokens: []TokenRequest{{TokenType: tokenX, Amount: amount(1), Holder: "ghost::" + keys.Fingerprint(alice.party.PublicKey)}}})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)

	_, err = svc.Issue(ctx, &IssueRequest{Tokens: []TokenRequest{{TokenType: tokenX, Amount: amount(0)}}})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)

	_, err = svc.Move(ctx, &MoveRequest{TokenType: "X", Amount: amount(1), Recipient: alice.party.ID})
	require.True(t, apperrors.Is(err, apperrors.CategoryDataConflict), "got %v", err)

	_, err = svc.Record(ctx, "missing")
	require.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound), "got %v", err)
}

func TestToServiceError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		cat  apperrors.Category
	}{
		{
			name: "double spend",
			err:  saga.Wrap("s", saga.StageFinality, fmt.Errorf("%w: notary: %w", saga.ErrFinality, finality.ErrConflict)),
			cat:  apperrors.CategoryDataConflict,
		},
		{
			name: "peer timeout",
			err:  saga.Wrap("s", saga.StageIdentityExchange, fmt.Errorf("request identity: %w", session.ErrTimeout)),
			cat:  apperrors.CategoryConnectionTimeout,
		},
		{
			name: "missing session",
			err:  saga.Wrap("s", saga.StageRoleNegotiation, fmt.Errorf("%w: participant has no session", saga.ErrSession)),
			cat:  apperrors.CategoryDependencyFailure,
		},
		{
			name: "protocol violation",
			err:  saga.Wrap("s", saga.StageIdentityExchange, session.ErrDuplicateMessage),
			cat:  apperrors.CategoryDependencyFailure,
		},
		{
			name: "missing anonymous identity",
			err:  saga.Wrap("s", saga.StageIdentityExchange, saga.ErrMissingAnonymousIdentity),
			cat:  apperrors.CategoryGeneralError,
		},
		{
			name: "invalid move",
			err:  fmt.Errorf("%w: amount must be positive", ErrInvalidMove),
			cat:  apperrors.CategoryDataError,
		},
		{
			name: "not holder",
			err:  ErrNotHolder,
			cat:  apperrors.CategoryForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := toServiceError(tc.err)
			require.True(t, apperrors.Is(err, tc.cat), "got %v", err)
			require.True(t, errors.Is(err, tc.err), "cause is kept")
		})
	}

	plain := errors.New("db down")
	require.Equal(t, plain, toServiceError(plain))
}

func TestToServiceError_MessageNamesStage(t *testing.T) {
	err := toServiceError(saga.Wrap("s", saga.StageFinality, fmt.Errorf("%w: missing signature", saga.ErrFinality)))
	var svcErr *apperrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	require.Equal(t, "finality failed: finality", svcErr.Message)
}
