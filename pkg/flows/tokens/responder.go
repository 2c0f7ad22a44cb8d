package tokens

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/flows/confidential"
	"github.com/chainsafe/canton-token-flows/pkg/flows/finality"
	"github.com/chainsafe/canton-token-flows/pkg/flows/roles"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
)

// Responders answer workflows initiated by other nodes
type Responders struct {
	identity *confidential.Handler
	finality *finality.Handler
	logger   *zap.Logger
}

// NewResponders creates the responders for the issue and move flows
func NewResponders(identity *confidential.Handler, fin *finality.Handler, logger *zap.Logger) *Responders {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responders{identity: identity, finality: fin, logger: logger}
}

// Register installs a handler for every flow on router
func (r *Responders) Register(router *session.Router) {
	router.Handle(FlowIssue, r.handler(FlowIssue, false))
	router.Handle(FlowConfidentialIssue, r.handler(FlowConfidentialIssue, true))
	router.Handle(FlowMove, r.handler(FlowMove, false))
	router.Handle(FlowConfidentialMove, r.handler(FlowConfidentialMove, true))
}

// handler runs identity exchange for confidential flows, then waits for the
// node's role and the committed transaction. The distribution list is kept by
// the initiator only.
func (r *Responders) handler(flow string, exchange bool) session.Handler {
	return func(ctx context.Context, sess session.Session) error {
		if exchange {
			if err := r.identity.Respond(ctx, sess); err != nil {
				return saga.Wrap(sess.ID(), saga.StageIdentityExchange, err)
			}
		}

		role, err := roles.ReceiveRole(ctx, sess)
		if err != nil {
			return saga.Wrap(sess.ID(), saga.StageRoleNegotiation, err)
		}

		tx, err := r.finality.Respond(ctx, sess, role)
		if err != nil {
			return saga.Wrap(sess.ID(), saga.StageFinality, err)
		}

		r.logger.Info("responded to workflow",
			zap.String("flow", flow),
			zap.String("session_id", sess.ID()),
			zap.String("initiator", sess.Counterparty().ID),
			zap.String("role", string(role)),
			zap.String("tx_id", tx.ID))
		return nil
	}
}
