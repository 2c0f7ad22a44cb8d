package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/config"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

type grpcFixture struct {
	alice  party.Party
	bob    party.Party
	dialer *Dialer
}

func startGRPC(t *testing.T, router *Router, knownToBob ...party.Party) *grpcFixture {
	t.Helper()
	alice, aliceKey := newParty(t, "alice")
	bob, _ := newParty(t, "bob")

	cfg := &config.PeeringConfig{
		ReceiveTimeout: 5 * time.Second,
		DialTimeout:    time.Second,
		RateLimit:      config.RateLimit{SessionsPerSecond: 100, Burst: 100},
	}
	registry := party.NewDirectory(knownToBob...)
	if knownToBob == nil {
		registry = party.NewDirectory(alice)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := NewServer(bob, router, registry, cfg, zap.NewNop())
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	dialer, err := NewDialer(alice, aliceKey, cfg, zap.NewNop())
	require.NoError(t, err)
	dialer.AddPeer(bob.ID, lis.Addr().String())
	t.Cleanup(func() { _ = dialer.Close() })

	return &grpcFixture{alice: alice, bob: bob, dialer: dialer}
}

func TestGRPC_RoundTrip(t *testing.T) {
	router := NewRouter()
	router.Handle("ping", func(ctx context.Context, sess Session) error {
		action, err := ReceiveValue[string](ctx, sess, KindActionRequest)
		if err != nil {
			return err
		}
		if err := SendValue(ctx, sess, KindIdentityResponse, action+" from "+sess.Counterparty().Name()); err != nil {
			return err
		}
		_, err = ReceiveValue[string](ctx, sess, KindFinalityTransaction)
		return err
	})
	f := startGRPC(t, router)
	ctx := testContext(t)

	sess, err := f.dialer.InitiateFlow(ctx, "ping", f.bob)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, SendValue(ctx, sess, KindActionRequest, "CREATE_NEW_KEY"))
	reply, err := ReceiveValue[string](ctx, sess, KindIdentityResponse)
	require.NoError(t, err)
	require.Equal(t, "CREATE_NEW_KEY from alice", reply)

	require.NoError(t, SendValue(ctx, sess, KindFinalityTransaction, "tx"))
	_, err = sess.Receive(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestGRPC_ResponderFailureCarriesStage(t *testing.T) {
	router := NewRouter()
	router.Handle("fail", func(ctx context.Context, sess Session) error {
		return &stageError{stage: "finality", err: errors.New("missing signature")}
	})
	f := startGRPC(t, router)
	ctx := testContext(t)

	sess, err := f.dialer.InitiateFlow(ctx, "fail", f.bob)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Receive(ctx)
	var re *RemoteError
	require.True(t, errors.As(err, &re), "got %v", err)
	require.Equal(t, "finality", re.Stage)
	require.Contains(t, re.Message, "missing signature")
}

func TestGRPC_Rejections(t *testing.T) {
	router := NewRouter()
	router.Handle("ping", func(context.Context, Session) error { return nil })

	t.Run("unknown flow", func(t *testing.T) {
		f := startGRPC(t, router)
		ctx := testContext(t)
		sess, err := f.dialer.InitiateFlow(ctx, "missing", f.bob)
		require.NoError(t, err)
		defer sess.Close()
		_, err = sess.Receive(ctx)
		require.ErrorIs(t, err, ErrUnknownFlow)
	})

	t.Run("unknown initiator", func(t *testing.T) {
		stranger, _ := newParty(t, "stranger")
		f := startGRPC(t, router, stranger)
		ctx := testContext(t)
		sess, err := f.dialer.InitiateFlow(ctx, "ping", f.bob)
		require.NoError(t, err)
		defer sess.Close()
		_, err = sess.Receive(ctx)
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("unknown peer", func(t *testing.T) {
		f := startGRPC(t, router)
		carol, _ := newParty(t, "carol")
		_, err := f.dialer.InitiateFlow(testContext(t), "ping", carol)
		require.ErrorIs(t, err, ErrUnknownPeer)
	})
}

func TestNewDialer_RejectsForeignKey(t *testing.T) {
	alice, _ := newParty(t, "alice")
	other, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	_, err = NewDialer(alice, other, &config.PeeringConfig{}, zap.NewNop())
	require.Error(t, err)
}
