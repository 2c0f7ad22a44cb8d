// Package tokens runs issuance and move workflows. A workflow optionally swaps
// holders for anonymous identities, tells every counterparty its role, commits
// the transaction and finally updates the distribution list. Each step runs only
// when the previous one succeeded; any failure aborts the whole run.
package tokens

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/flows/confidential"
	"github.com/chainsafe/canton-token-flows/pkg/flows/distribution"
	"github.com/chainsafe/canton-token-flows/pkg/flows/finality"
	"github.com/chainsafe/canton-token-flows/pkg/flows/roles"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

// Flow names. Sessions handed to the Orchestrator must have been opened with
// the flow matching the operation so the counterparty runs the right responder.
const (
	FlowIssue             = "issue"
	FlowConfidentialIssue = "confidential-issue"
	FlowMove              = "move"
	FlowConfidentialMove  = "confidential-move"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Components are the collaborators an Orchestrator sequences
type Components struct {
	Self         party.Party
	Notary       party.Party
	Wallet       *keys.Wallet
	Registry     party.Registry
	Vault        vault.Vault
	Initiator    session.Initiator
	Coordinator  *confidential.Coordinator
	Negotiator   *roles.Negotiator
	Finalizer    finality.Finalizer
	Distribution *distribution.Synchronizer
	Tracker      *saga.Tracker
	// Timeout bounds a whole run. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

// Orchestrator runs issuance and move workflows initiated by this node
type Orchestrator struct {
	Components
	logger *zap.Logger
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(c Components, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{Components: c, logger: logger}
}

// workflow is one run request after call shapes have been normalised
type workflow struct {
	flow         string
	confidential bool
	inputs       []ledger.StateAndRef
	outputs      []token.Record
	sessions     []session.Session
	// derive makes the run open its own sessions to the holders and observers
	// and close them when it ends
	derive    bool
	observers []party.Party
}

func (w *workflow) firstStep() saga.Step {
	if w.confidential {
		return saga.StepAwaitingIdentity
	}
	return saga.StepAwaitingRoles
}

func (w *workflow) propose(notary string, outputs []token.Record) (*ledger.Proposal, error) {
	if len(w.inputs) == 0 {
		return ledger.NewIssueProposal(notary, outputs)
	}
	return ledger.NewMoveProposal(notary, w.inputs, outputs)
}

// Issue commits records over sessions without anonymising holders
func (o *Orchestrator) Issue(ctx context.Context, records []token.Record, sessions []session.Session) (*ledger.CommittedTransaction, error) {
	return o.run(ctx, &workflow{flow: FlowIssue, outputs: records, sessions: sessions})
}

// ConfidentialIssue commits records over sessions after replacing every
// well-known holder with a fresh anonymous identity
func (o *Orchestrator) ConfidentialIssue(ctx context.Context, records []token.Record, sessions []session.Session) (*ledger.CommittedTransaction, error) {
	return o.run(ctx, &workflow{flow: FlowConfidentialIssue, confidential: true, outputs: records, sessions: sessions})
}

// Move consumes inputs and commits outputs over sessions
func (o *Orchestrator) Move(ctx context.Context, inputs []ledger.StateAndRef, outputs []token.Record, sessions []session.Session) (*ledger.CommittedTransaction, error) {
	return o.run(ctx, &workflow{flow: FlowMove, inputs: inputs, outputs: outputs, sessions: sessions})
}

// ConfidentialMove is Move with the new holders anonymised first
func (o *Orchestrator) ConfidentialMove(ctx context.Context, inputs []ledger.StateAndRef, outputs []token.Record, sessions []session.Session) (*ledger.CommittedTransaction, error) {
	return o.run(ctx, &workflow{flow: FlowConfidentialMove, confidential: true, inputs: inputs, outputs: outputs, sessions: sessions})
}

func (o *Orchestrator) run(ctx context.Context, w *workflow) (*ledger.CommittedTransaction, error) {
	start := time.Now()
	metrics.ActiveSagas.WithLabelValues(w.flow).Inc()
	defer metrics.ActiveSagas.WithLabelValues(w.flow).Dec()

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	// Malformed requests are rejected before a run is recorded
	if _, err := w.propose(o.Notary.ID, w.outputs); err != nil {
		return nil, err
	}

	run, err := o.Tracker.Start(ctx, w.flow, o.Self.ID, w.firstStep())
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("saga_id", run.ID()), zap.String("flow", w.flow))
	logger.Info("workflow started",
		zap.Int("inputs", len(w.inputs)),
		zap.Int("outputs", len(w.outputs)),
		zap.Bool("confidential", w.confidential))

	fail := func(stage saga.Stage, cause error) error {
		err := saga.Wrap(run.ID(), stage, cause)
		o.abort(ctx, run, w.flow, err, logger)
		return err
	}
	advance := func(step saga.Step) error {
		if err := run.Advance(ctx, step); err != nil {
			return fail(step.Stage(), err)
		}
		return nil
	}

	sessions := w.sessions
	if w.derive {
		counterparties, err := o.counterparties(ctx, w.inputs, w.outputs, w.observers)
		if err != nil {
			return nil, fail(w.firstStep().Stage(), err)
		}
		opened, err := o.open(ctx, w.flow, counterparties)
		if err != nil {
			return nil, fail(w.firstStep().Stage(), err)
		}
		defer func() {
			if err := session.CloseAll(opened); err != nil {
				logger.Debug("closing sessions", zap.Error(err))
			}
		}()
		sessions = append(append([]session.Session{}, sessions...), opened...)
	}
	if err := distinctCounterparties(sessions); err != nil {
		return nil, fail(w.firstStep().Stage(), err)
	}

	outputs := w.outputs
	if w.confidential {
		outputs, _, err = o.Coordinator.Anonymize(ctx, outputs, sessions)
		if err != nil {
			return nil, fail(saga.StageIdentityExchange, err)
		}
		if err := advance(saga.StepAwaitingRoles); err != nil {
			return nil, err
		}
	}

	// Anonymising holders cannot invalidate a proposal checked before the run.
	// A failure here is reported at role negotiation, the stage it is built for.
	proposal, err := w.propose(o.Notary.ID, outputs)
	if err != nil {
		return nil, fail(saga.StageRoleNegotiation, err)
	}
	roled, err := o.Negotiator.Negotiate(ctx, proposal, sessions)
	if err != nil {
		return nil, fail(saga.StageRoleNegotiation, err)
	}
	if err := advance(saga.StepAwaitingFinality); err != nil {
		return nil, err
	}

	tx, err := o.Finalizer.Finalise(ctx, proposal, roled)
	if err != nil {
		return nil, fail(saga.StageFinality, err)
	}
	if err := advance(saga.StepSyncing); err != nil {
		return nil, err
	}

	if err := o.Distribution.Sync(ctx, tx); err != nil {
		return nil, fail(saga.StageDistributionSync, err)
	}
	if err := run.Complete(ctx, tx.ID); err != nil {
		return nil, fail(saga.StageDistributionSync, err)
	}

	metrics.SagasTotal.WithLabelValues(w.flow, outcomeSuccess).Inc()
	metrics.SagaDuration.WithLabelValues(w.flow).Observe(time.Since(start).Seconds())
	logger.Info("workflow completed",
		zap.String("tx_id", tx.ID),
		zap.Int("sessions", len(roled)),
		zap.Duration("duration", time.Since(start)))
	return tx, nil
}

// abort records the failure. The run's context may already be gone, so the
// store is written under a context that outlives it.
func (o *Orchestrator) abort(ctx context.Context, run *saga.Run, flow string, err error, logger *zap.Logger) {
	stage, _ := saga.StageOf(err)
	metrics.SagasTotal.WithLabelValues(flow, outcomeFailure).Inc()
	metrics.SagaFailures.WithLabelValues(flow, string(stage), saga.KindName(err)).Inc()

	if ferr := run.Fail(context.WithoutCancel(ctx), err); ferr != nil {
		logger.Error("failed to record workflow failure", zap.Error(ferr))
	}
	logger.Warn("workflow aborted",
		zap.String("stage", string(stage)),
		zap.String("kind", saga.KindName(err)),
		zap.Error(err))
}

// open starts flow with every counterparty. Sessions opened before a failure
// are closed.
func (o *Orchestrator) open(ctx context.Context, flow string, counterparties []party.Party) ([]session.Session, error) {
	sessions := make([]session.Session, 0, len(counterparties))
	for _, cp := range counterparties {
		sess, err := o.Initiator.InitiateFlow(ctx, flow, cp)
		if err != nil {
			_ = session.CloseAll(sessions)
			return nil, fmt.Errorf("%w: open session to %s: %w", saga.ErrSession, cp, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// distinctCounterparties rejects two sessions to the same counterparty. Every
// message of the protocol is sent once per counterparty.
func distinctCounterparties(sessions []session.Session) error {
	seen := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		id := sess.Counterparty().ID
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: more than one session to %s", saga.ErrSession, sess.Counterparty())
		}
		seen[id] = struct{}{}
	}
	return nil
}

// counterparties returns the well-known parties a top-level workflow needs a
// session with: every holder other than the node itself plus the observers.
// Anonymous holders are resolved through the registry.
func (o *Orchestrator) counterparties(ctx context.Context, inputs []ledger.StateAndRef, outputs []token.Record, observers []party.Party) ([]party.Party, error) {
	holders := token.Holders(outputs)
	for _, in := range inputs {
		holders = append(holders, in.Record.Holder)
	}

	out := make([]party.Party, 0, len(holders)+len(observers))
	for _, h := range holders {
		wk := h
		if h.Anonymous {
			resolved, err := o.Registry.WellKnown(ctx, h)
			if err != nil {
				return nil, fmt.Errorf("%w: cannot resolve holder %s: %w", saga.ErrSession, h, err)
			}
			wk = resolved
		}
		out = append(out, wk)
	}
	out = append(out, observers...)

	var filtered []party.Party
	for _, p := range party.Distinct(out) {
		if !p.Equal(o.Self) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}
