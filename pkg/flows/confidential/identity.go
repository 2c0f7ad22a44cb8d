package confidential

import (
	"context"
	"crypto/rand"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
)

const nonceSize = 32

var bindingDomain = []byte("token-flows/anonymous-identity/v1")

type identityRequest struct {
	Nonce []byte `json:"nonce"`
}

// identityResponse proves the anonymous key is controlled by the responder and
// was minted for this request.
type identityResponse struct {
	Party          party.Party `json:"party"`
	OwnerSignature []byte      `json:"owner_signature"`
	KeySignature   []byte      `json:"key_signature"`
}

// identityBinding is the message both keys sign
func identityBinding(ownerID string, anonymousKey, nonce []byte) []byte {
	b := make([]byte, 0, len(bindingDomain)+len(ownerID)+len(anonymousKey)+len(nonce))
	b = append(b, bindingDomain...)
	b = append(b, ownerID...)
	b = append(b, anonymousKey...)
	return append(b, nonce...)
}

// requestIdentity runs the requesting side of identity issuance and registers the
// returned anonymous party as owned by the counterparty.
func requestIdentity(ctx context.Context, sess session.Session, registry party.Registry) (party.Party, error) {
	owner := sess.Counterparty()
	if len(owner.PublicKey) == 0 {
		return party.Party{}, fmt.Errorf("counterparty %s has no known key", owner)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return party.Party{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	if err := session.SendValue(ctx, sess, session.KindIdentityRequest, identityRequest{Nonce: nonce}); err != nil {
		return party.Party{}, err
	}
	resp, err := session.ReceiveValue[identityResponse](ctx, sess, session.KindIdentityResponse)
	if err != nil {
		return party.Party{}, err
	}

	anon := resp.Party
	if !anon.Anonymous || len(anon.PublicKey) == 0 {
		return party.Party{}, fmt.Errorf("%w: %s returned a non-anonymous identity", saga.ErrActionProtocol, owner)
	}
	if err := anon.Validate(); err != nil {
		return party.Party{}, fmt.Errorf("%w: %w", saga.ErrActionProtocol, err)
	}
	binding := identityBinding(owner.ID, anon.PublicKey, nonce)
	if !keys.Verify(owner.PublicKey, binding, resp.OwnerSignature) {
		return party.Party{}, fmt.Errorf("%w: identity from %s is not signed by its owner", saga.ErrActionProtocol, owner)
	}
	if !keys.Verify(anon.PublicKey, binding, resp.KeySignature) {
		return party.Party{}, fmt.Errorf("%w: identity from %s is not signed by the anonymous key", saga.ErrActionProtocol, owner)
	}

	if err := registry.RegisterAnonymous(ctx, anon, owner); err != nil {
		return party.Party{}, fmt.Errorf("failed to register anonymous identity: %w", err)
	}
	metrics.AnonymousIdentities.WithLabelValues("received").Inc()
	return anon, nil
}

// Issuer mints anonymous identities for the node
type Issuer struct {
	self     party.Party
	wallet   *keys.Wallet
	registry party.Registry
	logger   *zap.Logger
}

// NewIssuer creates an Issuer minting keys owned by self
func NewIssuer(self party.Party, wallet *keys.Wallet, registry party.Registry, logger *zap.Logger) *Issuer {
	return &Issuer{self: self, wallet: wallet, registry: registry, logger: logger}
}

// Mint creates and registers a fresh anonymous identity owned by the node
func (i *Issuer) Mint(ctx context.Context) (party.Party, *keys.KeyPair, error) {
	kp, err := i.wallet.FreshKey(ctx, keys.PurposeAnonymousIdentity)
	if err != nil {
		return party.Party{}, nil, err
	}
	anon := party.Anonymous(kp.PublicKey)
	if err := i.registry.RegisterAnonymous(ctx, anon, i.self); err != nil {
		return party.Party{}, nil, fmt.Errorf("failed to register anonymous identity: %w", err)
	}
	metrics.AnonymousIdentities.WithLabelValues("minted").Inc()
	return anon, kp, nil
}

// respond runs the issuing side of identity issuance
func (i *Issuer) respond(ctx context.Context, sess session.Session) error {
	req, err := session.ReceiveValue[identityRequest](ctx, sess, session.KindIdentityRequest)
	if err != nil {
		return err
	}
	if len(req.Nonce) != nonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes", saga.ErrActionProtocol, nonceSize)
	}

	anon, kp, err := i.Mint(ctx)
	if err != nil {
		return err
	}
	binding := identityBinding(i.self.ID, anon.PublicKey, req.Nonce)
	ownerSig, err := i.wallet.Identity().Sign(binding)
	if err != nil {
		return fmt.Errorf("failed to sign identity binding: %w", err)
	}
	keySig, err := kp.Sign(binding)
	if err != nil {
		return fmt.Errorf("failed to sign identity binding: %w", err)
	}

	i.logger.Debug("issued anonymous identity",
		zap.String("session_id", sess.ID()),
		zap.String("requester", sess.Counterparty().ID),
		zap.String("anonymous", anon.ID))
	return session.SendValue(ctx, sess, session.KindIdentityResponse, identityResponse{
		Party:          anon,
		OwnerSignature: ownerSig,
		KeySignature:   keySig,
	})
}
