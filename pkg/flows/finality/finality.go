// Package finality commits a proposal in two rounds. The signed proposal is
// first sent to every session, participants and observers alike, and each must
// accept it. Only then is it notarised, recorded and delivered in full.
package finality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/flows/roles"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

// Finalizer commits a proposal to the sessions whose roles have been negotiated
type Finalizer interface {
	Finalise(ctx context.Context, proposal *ledger.Proposal, sessions []roles.RoledSession) (*ledger.CommittedTransaction, error)
}

type ack struct {
	TxID string `json:"tx_id"`
}

// Flow is the initiating side of finality
type Flow struct {
	wallet *keys.Wallet
	notary Notary
	vault  vault.Vault
	logger *zap.Logger
}

// NewFlow creates a Flow
func NewFlow(wallet *keys.Wallet, notary Notary, v vault.Vault, logger *zap.Logger) *Flow {
	return &Flow{wallet: wallet, notary: notary, vault: v, logger: logger}
}

// Finalise signs for every required signer whose key this node holds and has
// every session accept the signed proposal. Nothing is notarised or recorded
// until all of them have; any failure up to that point is saga.ErrFinality and
// leaves the notary and the vault untouched.
//
// Once notarised the transaction is final. It is recorded and delivered, and a
// counterparty that fails to acknowledge delivery no longer fails the call: the
// failure is logged and counted in metrics.FinalityDeliveryFailures.
func (f *Flow) Finalise(ctx context.Context, proposal *ledger.Proposal, sessions []roles.RoledSession) (*ledger.CommittedTransaction, error) {
	tx, err := f.sign(ctx, proposal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", saga.ErrFinality, err)
	}
	if err := f.prepare(ctx, tx, sessions); err != nil {
		return nil, fmt.Errorf("%w: %w", saga.ErrFinality, err)
	}
	if err := f.commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %w", saga.ErrFinality, err)
	}
	f.deliver(ctx, tx, sessions)
	return tx, nil
}

func (f *Flow) sign(ctx context.Context, proposal *ledger.Proposal) (*ledger.CommittedTransaction, error) {
	hash, err := proposal.Hash()
	if err != nil {
		return nil, err
	}

	var sigs []ledger.Signature
	for _, signer := range proposal.RequiredSigners() {
		kp, err := f.wallet.Signer(ctx, signer.PublicKey)
		if errors.Is(err, keys.ErrKeyNotFound) {
			return nil, fmt.Errorf("missing signature from %s", signer)
		}
		if err != nil {
			return nil, fmt.Errorf("load key for %s: %w", signer, err)
		}
		sig, err := kp.SignHash(hash)
		if err != nil {
			return nil, fmt.Errorf("sign as %s: %w", signer, err)
		}
		sigs = append(sigs, ledger.Signature{PublicKey: kp.PublicKey, Signature: sig})
	}

	tx := &ledger.CommittedTransaction{
		ID:         ledger.TxID(hash),
		Proposal:   *proposal,
		Signatures: sigs,
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, err
	}
	return tx, nil
}

// prepare sends the signed, not yet notarised transaction to every session and
// waits for each to accept it
func (f *Flow) prepare(ctx context.Context, tx *ledger.CommittedTransaction, sessions []roles.RoledSession) error {
	for _, rs := range sessions {
		if err := session.SendValue(ctx, rs.Session, session.KindFinalityProposal, tx); err != nil {
			return fmt.Errorf("send proposal to %s: %w", rs.Session.Counterparty(), err)
		}
	}
	for _, rs := range sessions {
		a, err := session.ReceiveValue[ack](ctx, rs.Session, session.KindFinalityPrepared)
		if err != nil {
			return fmt.Errorf("await acceptance from %s: %w", rs.Session.Counterparty(), err)
		}
		if a.TxID != tx.ID {
			return fmt.Errorf("%w: %s accepted %s, expected %s", session.ErrUnexpectedMessage, rs.Session.Counterparty(), a.TxID, tx.ID)
		}
	}
	return nil
}

func (f *Flow) commit(ctx context.Context, tx *ledger.CommittedTransaction) error {
	notarySig, err := f.notary.Notarise(ctx, &tx.Proposal)
	if err != nil {
		return fmt.Errorf("notary: %w", err)
	}
	tx.NotarySignature = notarySig
	tx.CommittedAt = time.Now().UTC()
	if err := tx.Verify(nil); err != nil {
		return err
	}

	relevant, err := Relevance(ctx, f.wallet, tx.Proposal.Outputs)
	if err != nil {
		return err
	}
	if err := f.vault.Record(ctx, tx, vault.RelevantOnly, relevant); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// deliver sends the committed transaction to every session and collects the
// acknowledgements. A session that fails is skipped; the rest still get theirs.
func (f *Flow) deliver(ctx context.Context, tx *ledger.CommittedTransaction, sessions []roles.RoledSession) {
	sent := make([]roles.RoledSession, 0, len(sessions))
	for _, rs := range sessions {
		if err := session.SendValue(ctx, rs.Session, session.KindFinalityTransaction, tx); err != nil {
			f.undelivered(tx, rs, fmt.Errorf("send transaction: %w", err))
			continue
		}
		sent = append(sent, rs)
	}
	for _, rs := range sent {
		a, err := session.ReceiveValue[ack](ctx, rs.Session, session.KindFinalityAck)
		if err != nil {
			f.undelivered(tx, rs, fmt.Errorf("await acknowledgement: %w", err))
			continue
		}
		if a.TxID != tx.ID {
			f.undelivered(tx, rs, fmt.Errorf("%w: acknowledged %s", session.ErrUnexpectedMessage, a.TxID))
			continue
		}
		f.logger.Debug("transaction acknowledged",
			zap.String("tx_id", tx.ID),
			zap.String("counterparty", rs.Session.Counterparty().ID),
			zap.String("role", string(rs.Role)))
	}
}

func (f *Flow) undelivered(tx *ledger.CommittedTransaction, rs roles.RoledSession, err error) {
	metrics.FinalityDeliveryFailures.WithLabelValues(string(rs.Role)).Inc()
	f.logger.Warn("committed transaction not delivered",
		zap.String("tx_id", tx.ID),
		zap.String("counterparty", rs.Session.Counterparty().ID),
		zap.String("role", string(rs.Role)),
		zap.Error(err))
}

// Relevance resolves which records are held by keys in wallet
func Relevance(ctx context.Context, wallet *keys.Wallet, records []token.Record) (vault.Relevance, error) {
	ours := make(map[string]bool)
	for _, h := range token.Holders(records) {
		owned, err := wallet.Owns(ctx, h.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("check ownership of %s: %w", h, err)
		}
		ours[h.ID] = owned
	}
	return func(r token.Record) bool { return ours[r.Holder.ID] }, nil
}

// Handler is the responding side of finality
type Handler struct {
	wallet *keys.Wallet
	vault  vault.Vault
	logger *zap.Logger
}

// NewHandler creates the finality responder
func NewHandler(wallet *keys.Wallet, v vault.Vault, logger *zap.Logger) *Handler {
	return &Handler{wallet: wallet, vault: v, logger: logger}
}

// Respond accepts the signed proposal once the node's role is known, then
// receives the committed transaction, verifies and records it and acknowledges.
// Nothing is recorded before the notarised transaction arrives. Participants
// keep the records they hold; observers keep every output.
func (h *Handler) Respond(ctx context.Context, sess session.Session, role roles.Role) (*ledger.CommittedTransaction, error) {
	prepared, err := session.ReceiveValue[ledger.CommittedTransaction](ctx, sess, session.KindFinalityProposal)
	if err != nil {
		return nil, err
	}
	if err := prepared.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("%w: %w", saga.ErrFinality, err)
	}
	if err := session.SendValue(ctx, sess, session.KindFinalityPrepared, ack{TxID: prepared.ID}); err != nil {
		return nil, err
	}

	tx, err := session.ReceiveValue[ledger.CommittedTransaction](ctx, sess, session.KindFinalityTransaction)
	if err != nil {
		return nil, err
	}
	if tx.ID != prepared.ID {
		return nil, fmt.Errorf("%w: %w: committed %s after accepting %s", saga.ErrFinality, session.ErrUnexpectedMessage, tx.ID, prepared.ID)
	}
	if err := tx.Verify(nil); err != nil {
		return nil, fmt.Errorf("%w: %w", saga.ErrFinality, err)
	}

	mode := vault.RelevantOnly
	if role == roles.Observer {
		mode = vault.AllVisible
	}
	relevant, err := Relevance(ctx, h.wallet, tx.Proposal.Outputs)
	if err != nil {
		return nil, err
	}
	if err := h.vault.Record(ctx, &tx, mode, relevant); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	if err := session.SendValue(ctx, sess, session.KindFinalityAck, ack{TxID: tx.ID}); err != nil {
		return nil, err
	}

	h.logger.Info("recorded committed transaction",
		zap.String("tx_id", tx.ID),
		zap.String("initiator", sess.Counterparty().ID),
		zap.String("role", string(role)),
		zap.String("visibility", string(mode)))
	return &tx, nil
}
