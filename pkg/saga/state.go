package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a saga id is unknown
	ErrNotFound = errors.New("saga not found")
	// ErrInvalidTransition is returned when a run moves backwards or leaves a final step
	ErrInvalidTransition = errors.New("invalid saga transition")
)

// Step is a named point in a workflow run
type Step string

const (
	StepAwaitingIdentity Step = "AWAITING_IDENTITY"
	StepAwaitingRoles    Step = "AWAITING_ROLES"
	StepAwaitingFinality Step = "AWAITING_FINALITY"
	StepSyncing          Step = "SYNCING"
	StepDone             Step = "DONE"
	StepFailed           Step = "FAILED"
)

var stepOrder = map[Step]int{
	StepAwaitingIdentity: 0,
	StepAwaitingRoles:    1,
	StepAwaitingFinality: 2,
	StepSyncing:          3,
	StepDone:             4,
}

// Stage returns the stage a run is in while at step s
func (s Step) Stage() Stage {
	switch s {
	case StepAwaitingIdentity:
		return StageIdentityExchange
	case StepAwaitingRoles:
		return StageRoleNegotiation
	case StepAwaitingFinality:
		return StageFinality
	case StepSyncing:
		return StageDistributionSync
	default:
		return ""
	}
}

// Terminal reports whether no further transition is allowed from s
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// State is the recorded progress of one workflow run
type State struct {
	ID        string
	Flow      string
	Initiator string
	Step      Step
	Stage     Stage
	Error     string
	TxID      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists workflow runs
type Store interface {
	Create(ctx context.Context, s *State) error
	Update(ctx context.Context, s *State) error
	Get(ctx context.Context, id string) (*State, error)
	ListActive(ctx context.Context) ([]*State, error)
}

// Tracker records workflow runs and their transitions
type Tracker struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker backed by store
func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Start records a new run of flow beginning at step
func (t *Tracker) Start(ctx context.Context, flow, initiator string, step Step) (*Run, error) {
	now := t.now()
	st := &State{
		ID:        uuid.NewString(),
		Flow:      flow,
		Initiator: initiator,
		Step:      step,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to record saga start: %w", err)
	}
	t.logger.Debug("saga started",
		zap.String("saga_id", st.ID),
		zap.String("flow", flow),
		zap.String("step", string(step)))
	return &Run{tracker: t, state: st}, nil
}

// AbortInterrupted fails every run left unfinished by a previous process
func (t *Tracker) AbortInterrupted(ctx context.Context) (int, error) {
	active, err := t.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active sagas: %w", err)
	}
	for _, st := range active {
		st.Stage = st.Step.Stage()
		st.Step = StepFailed
		st.Error = "interrupted by node restart"
		st.UpdatedAt = t.now()
		if err := t.store.Update(ctx, st); err != nil {
			return 0, fmt.Errorf("failed to abort saga %s: %w", st.ID, err)
		}
		t.logger.Warn("aborted interrupted saga",
			zap.String("saga_id", st.ID),
			zap.String("flow", st.Flow),
			zap.String("stage", string(st.Stage)))
	}
	return len(active), nil
}

// Run is one workflow execution. It is owned by a single goroutine.
type Run struct {
	tracker *Tracker
	state   *State
}

func (r *Run) ID() string {
	return r.state.ID
}

func (r *Run) Step() Step {
	return r.state.Step
}

// Advance moves the run forward to step
func (r *Run) Advance(ctx context.Context, step Step) error {
	cur := r.state.Step
	if cur.Terminal() || step.Terminal() || stepOrder[step] < stepOrder[cur] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, step)
	}
	return r.save(ctx, step, func(*State) {})
}

// Complete marks the run DONE with the committed transaction id
func (r *Run) Complete(ctx context.Context, txID string) error {
	if r.state.Step.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state.Step, StepDone)
	}
	return r.save(ctx, StepDone, func(st *State) { st.TxID = txID })
}

// Fail marks the run FAILED, recording the stage carried by cause
func (r *Run) Fail(ctx context.Context, cause error) error {
	if r.state.Step.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state.Step, StepFailed)
	}
	stage, ok := StageOf(cause)
	if !ok {
		stage = r.state.Step.Stage()
	}
	return r.save(ctx, StepFailed, func(st *State) {
		st.Stage = stage
		st.Error = cause.Error()
	})
}

func (r *Run) save(ctx context.Context, step Step, apply func(*State)) error {
	next := *r.state
	next.Step = step
	next.UpdatedAt = r.tracker.now()
	apply(&next)
	if err := r.tracker.store.Update(ctx, &next); err != nil {
		return fmt.Errorf("failed to record saga step %s: %w", step, err)
	}
	r.state = &next
	r.tracker.logger.Debug("saga step",
		zap.String("saga_id", next.ID),
		zap.String("flow", next.Flow),
		zap.String("step", string(step)))
	return nil
}
