package confidential

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

const exchangeFlow = "identity-exchange-test"

type countingStore struct {
	keys.KeyStore
	saved atomic.Int32
}

func (s *countingStore) SaveKey(ctx context.Context, key *keys.StoredKey) error {
	s.saved.Add(1)
	return s.KeyStore.SaveKey(ctx, key)
}

type testNode struct {
	party    party.Party
	registry *party.Directory
	store    *countingStore
	issuer   *Issuer
	router   *session.Router
}

func newTestNode(t *testing.T, name string) *testNode {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	master, err := keys.GenerateMasterKey()
	require.NoError(t, err)
	cipher, err := keys.NewMasterKeyCipher(master)
	require.NoError(t, err)

	self := party.WellKnown(name, kp.PublicKey)
	store := &countingStore{KeyStore: keys.NewMemoryKeyStore()}
	registry := party.NewDirectory(self)
	issuer := NewIssuer(self, keys.NewWallet(kp, store, cipher), registry, zap.NewNop())

	router := session.NewRouter()
	router.Handle(exchangeFlow, NewHandler(issuer).Respond)
	return &testNode{party: self, registry: registry, store: store, issuer: issuer, router: router}
}

type fixture struct {
	network *session.LocalNetwork
	alice   *testNode
	bob     *testNode
	carol   *testNode
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		network: session.NewLocalNetwork(zap.NewNop()),
		alice:   newTestNode(t, "alice"),
		bob:     newTestNode(t, "bob"),
		carol:   newTestNode(t, "carol"),
	}
	for _, n := range []*testNode{f.alice, f.bob, f.carol} {
		f.network.Join(n.party, n.router)
	}
	f.coord = NewCoordinator(f.alice.issuer, f.alice.registry, zap.NewNop())
	return f
}

func (f *fixture) open(t *testing.T, ctx context.Context, counterparties ...party.Party) []session.Session {
	t.Helper()
	initiator := f.network.Initiator(f.alice.party)
	sessions := make([]session.Session, 0, len(counterparties))
	for _, cp := range counterparties {
		s, err := initiator.InitiateFlow(ctx, exchangeFlow, cp)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}
	t.Cleanup(func() {
		_ = session.CloseAll(sessions)
		f.network.Wait()
	})
	return sessions
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var tokenX = token.Type{ID: "X"}

func TestAnonymize_HolderGetsFreshIdentityObserverDoesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	records := []token.Record{
		token.NewFungible(tokenX, decimal.NewFromInt(60), f.alice.party, f.bob.party),
		token.NewFungible(tokenX, decimal.NewFromInt(40), f.alice.party, f.bob.party),
	}
	sessions := f.open(t, ctx, f.bob.party, f.carol.party)

	out, mapping, err := f.coord.Anonymize(ctx, records, sessions)
	require.NoError(t, err)
	require.Len(t, mapping, 1)

	anon, ok := mapping[f.bob.party.ID]
	require.True(t, ok)
	require.True(t, anon.Anonymous)
	for i, r := range out {
		require.True(t, r.Holder.Equal(anon), "record %d holder", i)
		require.Equal(t, records[i].LinearID, r.LinearID)
	}

	owner, err := f.alice.registry.WellKnown(ctx, anon)
	require.NoError(t, err)
	require.True(t, owner.Equal(f.bob.party))

	f.network.Wait()
	owner, err = f.bob.registry.WellKnown(ctx, anon)
	require.NoError(t, err)
	require.True(t, owner.Equal(f.bob.party))

	require.EqualValues(t, 1, f.bob.store.saved.Load())
	require.EqualValues(t, 0, f.carol.store.saved.Load(), "DO_NOTHING must not mint a key")
}

func TestAnonymize_NoReuseAcrossRuns(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	records := []token.Record{token.NewNonFungible(tokenX, f.alice.party, f.bob.party)}

	_, first, err := f.coord.Anonymize(ctx, records, f.open(t, ctx, f.bob.party))
	require.NoError(t, err)
	_, second, err := f.coord.Anonymize(ctx, records, f.open(t, ctx, f.bob.party))
	require.NoError(t, err)

	require.False(t, first[f.bob.party.ID].Equal(second[f.bob.party.ID]))
}

func TestAnonymize_SelfHeldRecordsUseLocalIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	records := []token.Record{token.NewFungible(tokenX, decimal.NewFromInt(5), f.alice.party, f.alice.party)}

	out, mapping, err := f.coord.Anonymize(ctx, records, nil)
	require.NoError(t, err)
	anon := mapping[f.alice.party.ID]
	require.True(t, anon.Anonymous)
	require.True(t, out[0].Holder.Equal(anon))

	owner, err := f.alice.registry.WellKnown(ctx, anon)
	require.NoError(t, err)
	require.True(t, owner.Equal(f.alice.party))
}

func TestAnonymize_MissingSession(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	records := []token.Record{token.NewNonFungible(tokenX, f.alice.party, f.bob.party)}

	_, _, err := f.coord.Anonymize(ctx, records, f.open(t, ctx, f.carol.party))
	require.True(t, errors.Is(err, saga.ErrMissingAnonymousIdentity), "got %v", err)
}

func TestAnonymize_AlreadyAnonymousHolderUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	anon := party.Anonymous(kp.PublicKey)
	records := []token.Record{token.NewNonFungible(tokenX, f.alice.party, anon)}

	out, mapping, err := f.coord.Anonymize(ctx, records, f.open(t, ctx, f.carol.party))
	require.NoError(t, err)
	require.Empty(t, mapping)
	require.True(t, out[0].Holder.Equal(anon))
}

func TestHandler_RejectsUnknownAction(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	a, b := session.NewPipe(f.alice.party, f.bob.party)

	require.NoError(t, session.SendValue(ctx, a, session.KindActionRequest, "SOMETHING_ELSE"))
	err := NewHandler(f.bob.issuer).Respond(ctx, b)
	require.True(t, errors.Is(err, saga.ErrActionProtocol), "got %v", err)
}

func TestRequestIdentity_RejectsForgedIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)
	a, b := session.NewPipe(f.alice.party, f.bob.party)

	go func() {
		req, err := session.ReceiveValue[identityRequest](ctx, b, session.KindIdentityRequest)
		if err != nil {
			return
		}
		// carol mints the key but claims bob owns it
		anon, kp, err := f.carol.issuer.Mint(ctx)
		if err != nil {
			return
		}
		binding := identityBinding(f.bob.party.ID, anon.PublicKey, req.Nonce)
		keySig, _ := kp.Sign(binding)
		ownerSig, _ := f.carol.issuer.wallet.Identity().Sign(binding)
		_ = session.SendValue(ctx, b, session.KindIdentityResponse, identityResponse{
			Party: anon, OwnerSignature: ownerSig, KeySignature: keySig,
		})
	}()

	_, err := requestIdentity(ctx, a, f.alice.registry)
	require.True(t, errors.Is(err, saga.ErrActionProtocol), "got %v", err)
}
