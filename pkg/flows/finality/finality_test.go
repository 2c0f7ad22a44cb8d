package finality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/flows/roles"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

var tokenX = token.Type{ID: "X"}

type node struct {
	party  party.Party
	wallet *keys.Wallet
	vault  *vault.MemoryVault
}

func newNode(t *testing.T, name string) *node {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	master, err := keys.GenerateMasterKey()
	require.NoError(t, err)
	cipher, err := keys.NewMasterKeyCipher(master)
	require.NoError(t, err)
	return &node{
		party:  party.WellKnown(name, kp.PublicKey),
		wallet: keys.NewWallet(kp, keys.NewMemoryKeyStore(), cipher),
		vault:  vault.NewMemoryVault(),
	}
}

func (n *node) anonymous(t *testing.T) party.Party {
	t.Helper()
	kp, err := n.wallet.FreshKey(context.Background(), keys.PurposeAnonymousIdentity)
	require.NoError(t, err)
	return party.Anonymous(kp.PublicKey)
}

func newNotary(t *testing.T) *LocalNotary {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	return NewLocalNotary("notary", kp, zap.NewNop())
}

type responderResult struct {
	tx  *ledger.CommittedTransaction
	err error
}

func respond(ctx context.Context, n *node, sess session.Session) <-chan responderResult {
	out := make(chan responderResult, 1)
	go func() {
		sess = session.Guard(sess)
		role, err := roles.ReceiveRole(ctx, sess)
		if err != nil {
			out <- responderResult{err: err}
			return
		}
		tx, err := NewHandler(n.wallet, n.vault, zap.NewNop()).Respond(ctx, sess, role)
		out <- responderResult{tx: tx, err: err}
	}()
	return out
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFinalise_ParticipantAndObserver(t *testing.T) {
	ctx := testContext(t)
	alice, bob, carol := newNode(t, "alice"), newNode(t, "bob"), newNode(t, "carol")
	notary := newNotary(t)
	anonBob := bob.anonymous(t)

	record := token.NewFungible(tokenX, decimal.NewFromInt(100), alice.party, anonBob)
	proposal, err := ledger.NewIssueProposal(notary.Party().ID, []token.Record{record})
	require.NoError(t, err)

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	toCarol, atCarol := session.NewPipe(alice.party, carol.party)
	bobDone := respond(ctx, bob, atBob)
	carolDone := respond(ctx, carol, atCarol)

	require.NoError(t, session.SendValue(ctx, toBob, session.KindTransactionRole, roles.Participant))
	require.NoError(t, session.SendValue(ctx, toCarol, session.KindTransactionRole, roles.Observer))

	flow := NewFlow(alice.wallet, notary, alice.vault, zap.NewNop())
	tx, err := flow.Finalise(ctx, proposal, []roles.RoledSession{
		{Session: toBob, Role: roles.Participant},
		{Session: toCarol, Role: roles.Observer},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Verify(nil))

	bobResult := <-bobDone
	require.NoError(t, bobResult.err)
	require.Equal(t, tx.ID, bobResult.tx.ID)
	carolResult := <-carolDone
	require.NoError(t, carolResult.err)
	require.Equal(t, tx.ID, carolResult.tx.ID)

	balance, err := bob.vault.SumBalance(ctx, "X")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(100).Equal(balance))

	observed, err := carol.vault.FindCurrentRecord(ctx, record.LinearID)
	require.NoError(t, err)
	require.True(t, observed.Record.Holder.Equal(anonBob))
	carolBalance, err := carol.vault.SumBalance(ctx, "X")
	require.NoError(t, err)
	require.True(t, carolBalance.IsZero())

	_, err = alice.vault.Transaction(ctx, tx.ID)
	require.NoError(t, err, "initiator records the transaction it finalised")
	_, err = alice.vault.FindCurrentRecord(ctx, record.LinearID)
	require.True(t, errors.Is(err, vault.ErrNotFound))
}

func TestFinalise_MissingSignature(t *testing.T) {
	ctx := testContext(t)
	alice, bob, dave := newNode(t, "alice"), newNode(t, "bob"), newNode(t, "dave")
	notary := newNotary(t)

	proposal, err := ledger.NewIssueProposal(notary.Party().ID, []token.Record{
		token.NewFungible(tokenX, decimal.NewFromInt(1), dave.party, bob.party),
	})
	require.NoError(t, err)

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	flow := NewFlow(alice.wallet, notary, alice.vault, zap.NewNop())
	_, err = flow.Finalise(ctx, proposal, []roles.RoledSession{{Session: toBob, Role: roles.Participant}})
	require.True(t, errors.Is(err, saga.ErrFinality), "got %v", err)
	require.Contains(t, err.Error(), "missing signature")

	require.NoError(t, toBob.Close())
	_, err = atBob.Receive(ctx)
	require.ErrorIs(t, err, session.ErrClosed, "nothing is sent when signing fails")
}

func TestFinalise_ResponderFailureLeavesNothingCommitted(t *testing.T) {
	ctx := testContext(t)
	alice, bob := newNode(t, "alice"), newNode(t, "bob")
	notary := newNotary(t)

	in := ledger.StateAndRef{
		Ref:    ledger.StateRef{TxID: "aa", Index: 0},
		Record: token.NewFungible(tokenX, decimal.NewFromInt(10), bob.party, alice.party),
	}
	proposal, err := ledger.NewMoveProposal(notary.Party().ID, []ledger.StateAndRef{in}, []token.Record{in.Record.WithHolder(bob.party)})
	require.NoError(t, err)

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	go func() {
		_, _ = atBob.Receive(ctx)
		atBob.CloseWithError(errors.New("disk full"))
	}()

	flow := NewFlow(alice.wallet, notary, alice.vault, zap.NewNop())
	_, err = flow.Finalise(ctx, proposal, []roles.RoledSession{{Session: toBob, Role: roles.Participant}})
	require.True(t, errors.Is(err, saga.ErrFinality), "got %v", err)
	require.True(t, errors.Is(err, session.ErrClosed), "got %v", err)

	hash, err := proposal.Hash()
	require.NoError(t, err)
	_, err = alice.vault.Transaction(ctx, ledger.TxID(hash))
	require.True(t, errors.Is(err, vault.ErrNotFound), "nothing recorded before every session accepted")

	retry, err := ledger.NewMoveProposal(notary.Party().ID, []ledger.StateAndRef{in}, []token.Record{in.Record})
	require.NoError(t, err)
	_, err = notary.Notarise(ctx, retry)
	require.NoError(t, err, "the input was never consumed")
}

func TestFinalise_DeliveryFailureAfterCommit(t *testing.T) {
	ctx := testContext(t)
	alice, bob := newNode(t, "alice"), newNode(t, "bob")
	notary := newNotary(t)

	proposal, err := ledger.NewIssueProposal(notary.Party().ID, []token.Record{
		token.NewFungible(tokenX, decimal.NewFromInt(1), alice.party, bob.party),
	})
	require.NoError(t, err)

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	go func() {
		prepared, err := session.ReceiveValue[ledger.CommittedTransaction](ctx, atBob, session.KindFinalityProposal)
		if err != nil {
			return
		}
		if err := session.SendValue(ctx, atBob, session.KindFinalityPrepared, ack{TxID: prepared.ID}); err != nil {
			return
		}
		_, _ = atBob.Receive(ctx)
		atBob.CloseWithError(errors.New("disk full"))
	}()

	flow := NewFlow(alice.wallet, notary, alice.vault, zap.NewNop())
	tx, err := flow.Finalise(ctx, proposal, []roles.RoledSession{{Session: toBob, Role: roles.Participant}})
	require.NoError(t, err, "a notarised transaction stays committed")
	require.NoError(t, tx.Verify(nil))

	_, err = alice.vault.Transaction(ctx, tx.ID)
	require.NoError(t, err)
}

func TestLocalNotary_RejectsDoubleSpend(t *testing.T) {
	ctx := testContext(t)
	alice, bob, carol := newNode(t, "alice"), newNode(t, "bob"), newNode(t, "carol")
	notary := newNotary(t)

	in := ledger.StateAndRef{
		Ref:    ledger.StateRef{TxID: "aa", Index: 0},
		Record: token.NewFungible(tokenX, decimal.NewFromInt(10), alice.party, bob.party),
	}
	toCarol, err := ledger.NewMoveProposal(notary.Party().ID, []ledger.StateAndRef{in}, []token.Record{in.Record.WithHolder(carol.party)})
	require.NoError(t, err)
	toAlice, err := ledger.NewMoveProposal(notary.Party().ID, []ledger.StateAndRef{in}, []token.Record{in.Record.WithHolder(alice.party)})
	require.NoError(t, err)

	_, err = notary.Notarise(ctx, toCarol)
	require.NoError(t, err)
	_, err = notary.Notarise(ctx, toCarol)
	require.NoError(t, err, "re-notarising the same transaction is allowed")
	_, err = notary.Notarise(ctx, toAlice)
	require.ErrorIs(t, err, ErrConflict)

	other, err := ledger.NewIssueProposal("elsewhere::00", []token.Record{in.Record})
	require.NoError(t, err)
	_, err = notary.Notarise(ctx, other)
	require.Error(t, err)
}

func TestHandler_RejectsUnsignedProposal(t *testing.T) {
	ctx := testContext(t)
	alice, bob := newNode(t, "alice"), newNode(t, "bob")
	notary := newNotary(t)

	proposal, err := ledger.NewIssueProposal(notary.Party().ID, []token.Record{
		token.NewFungible(tokenX, decimal.NewFromInt(1), alice.party, bob.party),
	})
	require.NoError(t, err)
	hash, err := proposal.Hash()
	require.NoError(t, err)
	tx := &ledger.CommittedTransaction{ID: ledger.TxID(hash), Proposal: *proposal}

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	done := respond(ctx, bob, atBob)
	require.NoError(t, session.SendValue(ctx, toBob, session.KindTransactionRole, roles.Participant))
	require.NoError(t, session.SendValue(ctx, toBob, session.KindFinalityProposal, tx))

	result := <-done
	require.True(t, errors.Is(result.err, saga.ErrFinality), "got %v", result.err)
}

func TestHandler_RejectsCommitOfAnotherTransaction(t *testing.T) {
	ctx := testContext(t)
	alice, bob := newNode(t, "alice"), newNode(t, "bob")
	notary := newNotary(t)

	signed := func(amount int64) *ledger.CommittedTransaction {
		proposal, err := ledger.NewIssueProposal(notary.Party().ID, []token.Record{
			token.NewFungible(tokenX, decimal.NewFromInt(amount), alice.party, bob.party),
		})
		require.NoError(t, err)
		hash, err := proposal.Hash()
		require.NoError(t, err)
		kp, err := alice.wallet.Signer(ctx, alice.party.PublicKey)
		require.NoError(t, err)
		sig, err := kp.SignHash(hash)
		require.NoError(t, err)
		notarySig, err := notary.Notarise(ctx, proposal)
		require.NoError(t, err)
		return &ledger.CommittedTransaction{
			ID:              ledger.TxID(hash),
			Proposal:        *proposal,
			Signatures:      []ledger.Signature{{PublicKey: kp.PublicKey, Signature: sig}},
			NotarySignature: notarySig,
		}
	}
	accepted, other := signed(1), signed(2)

	toBob, atBob := session.NewPipe(alice.party, bob.party)
	done := respond(ctx, bob, atBob)
	require.NoError(t, session.SendValue(ctx, toBob, session.KindTransactionRole, roles.Participant))
	require.NoError(t, session.SendValue(ctx, toBob, session.KindFinalityProposal, accepted))
	a, err := session.ReceiveValue[ack](ctx, toBob, session.KindFinalityPrepared)
	require.NoError(t, err)
	require.Equal(t, accepted.ID, a.TxID)
	require.NoError(t, session.SendValue(ctx, toBob, session.KindFinalityTransaction, other))

	result := <-done
	require.True(t, errors.Is(result.err, saga.ErrFinality), "got %v", result.err)
	require.True(t, errors.Is(result.err, session.ErrUnexpectedMessage), "got %v", result.err)
	_, err = bob.vault.Transaction(ctx, other.ID)
	require.True(t, errors.Is(err, vault.ErrNotFound))
}
