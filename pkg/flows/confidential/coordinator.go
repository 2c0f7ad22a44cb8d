// Package confidential exchanges one-time anonymous identities for the holders of
// new token records, so that the ledger never shows a holder's well-known name.
package confidential

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

// ActionRequest is the first message of identity exchange on every session
type ActionRequest string

const (
	CreateNewKey ActionRequest = "CREATE_NEW_KEY"
	DoNothing    ActionRequest = "DO_NOTHING"
)

// Coordinator runs identity exchange on the initiating side
type Coordinator struct {
	issuer   *Issuer
	registry party.Registry
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator. Records held by the node itself are
// re-keyed with identities minted by issuer.
func NewCoordinator(issuer *Issuer, registry party.Registry, logger *zap.Logger) *Coordinator {
	return &Coordinator{issuer: issuer, registry: registry, logger: logger}
}

// Anonymize sends one action request per session, collects a fresh anonymous
// identity from every counterparty holding a record and returns the records
// re-keyed to those identities together with the well-known id to anonymous
// party mapping.
func (c *Coordinator) Anonymize(ctx context.Context, records []token.Record, sessions []session.Session) ([]token.Record, map[string]party.Party, error) {
	holders := make(map[string]party.Party)
	for _, h := range token.Holders(records) {
		if !h.Anonymous {
			holders[h.ID] = h
		}
	}

	mapping := make(map[string]party.Party, len(holders))
	for _, sess := range sessions {
		cp := sess.Counterparty()
		if cp.Equal(c.issuer.self) {
			continue
		}
		if _, ok := holders[cp.ID]; !ok {
			if err := session.SendValue(ctx, sess, session.KindActionRequest, DoNothing); err != nil {
				return nil, nil, fmt.Errorf("send action request to %s: %w", cp, err)
			}
			continue
		}

		if err := session.SendValue(ctx, sess, session.KindActionRequest, CreateNewKey); err != nil {
			return nil, nil, fmt.Errorf("send action request to %s: %w", cp, err)
		}
		anon, err := requestIdentity(ctx, sess, c.registry)
		if err != nil {
			return nil, nil, fmt.Errorf("request identity from %s: %w", cp, err)
		}
		mapping[cp.ID] = anon
	}

	if _, ok := holders[c.issuer.self.ID]; ok {
		anon, _, err := c.issuer.Mint(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("mint own anonymous identity: %w", err)
		}
		mapping[c.issuer.self.ID] = anon
	}

	out := make([]token.Record, len(records))
	for i, r := range records {
		if r.Holder.Anonymous {
			out[i] = r
			continue
		}
		anon, ok := mapping[r.Holder.ID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: no anonymous identity for holder %s", saga.ErrMissingAnonymousIdentity, r.Holder)
		}
		out[i] = r.WithHolder(anon)
	}

	c.logger.Debug("identity exchange complete",
		zap.Int("sessions", len(sessions)),
		zap.Int("anonymized_holders", len(mapping)))
	return out, mapping, nil
}

// Handler is the passive side of identity exchange
type Handler struct {
	issuer *Issuer
}

// NewHandler creates the responder for identity exchange
func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

// Respond receives exactly one action request and runs identity issuance when asked to
func (h *Handler) Respond(ctx context.Context, sess session.Session) error {
	action, err := session.ReceiveValue[ActionRequest](ctx, sess, session.KindActionRequest)
	if err != nil {
		return err
	}
	switch action {
	case DoNothing:
		return nil
	case CreateNewKey:
		return h.issuer.respond(ctx, sess)
	default:
		return fmt.Errorf("%w: unknown action request %q", saga.ErrActionProtocol, action)
	}
}
