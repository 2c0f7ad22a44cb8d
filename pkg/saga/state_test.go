package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/pgutil"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func exerciseTracker(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	tracker := NewTracker(store, zap.NewNop())

	run, err := tracker.Start(ctx, "confidential-issue", "alice::01", StepAwaitingIdentity)
	require.NoError(t, err)
	require.NoError(t, run.Advance(ctx, StepAwaitingRoles))
	require.NoError(t, run.Advance(ctx, StepAwaitingFinality))
	require.ErrorIs(t, run.Advance(ctx, StepAwaitingIdentity), ErrInvalidTransition)
	require.NoError(t, run.Advance(ctx, StepSyncing))
	require.NoError(t, run.Complete(ctx, "abcd"))
	require.ErrorIs(t, run.Fail(ctx, errors.New("late")), ErrInvalidTransition)

	got, err := store.Get(ctx, run.ID())
	require.NoError(t, err)
	require.Equal(t, StepDone, got.Step)
	require.Equal(t, "abcd", got.TxID)
	require.Equal(t, "alice::01", got.Initiator)

	failed, err := tracker.Start(ctx, "move", "alice::01", StepAwaitingRoles)
	require.NoError(t, err)
	require.NoError(t, failed.Advance(ctx, StepAwaitingFinality))
	require.NoError(t, failed.Fail(ctx, Wrap(failed.ID(), StageFinality, ErrFinality)))

	got, err = store.Get(ctx, failed.ID())
	require.NoError(t, err)
	require.Equal(t, StepFailed, got.Step)
	require.Equal(t, StageFinality, got.Stage)
	require.Contains(t, got.Error, "finality")

	unstaged, err := tracker.Start(ctx, "issue", "alice::01", StepAwaitingRoles)
	require.NoError(t, err)
	require.NoError(t, unstaged.Fail(ctx, errors.New("boom")))
	got, err = store.Get(ctx, unstaged.ID())
	require.NoError(t, err)
	require.Equal(t, StageRoleNegotiation, got.Stage)

	interrupted, err := tracker.Start(ctx, "issue", "alice::01", StepAwaitingRoles)
	require.NoError(t, err)
	require.NoError(t, interrupted.Advance(ctx, StepSyncing))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	n, err := tracker.AbortInterrupted(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	got, err = store.Get(ctx, interrupted.ID())
	require.NoError(t, err)
	require.Equal(t, StepFailed, got.Step)
	require.Equal(t, StageDistributionSync, got.Stage)

	_, err = store.Get(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_Memory(t *testing.T) {
	exerciseTracker(t, NewMemoryStore())
}

func TestTracker_PG(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	require.NoError(t, mghelper.CreateSchema(context.Background(), db, &SagaDao{}))
	exerciseTracker(t, NewPGStore(db))
}
