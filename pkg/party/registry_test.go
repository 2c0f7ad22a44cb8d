package party

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainsafe/canton-token-flows/pkg/pgutil"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func exerciseRegistry(t *testing.T, r Registry) {
	t.Helper()
	ctx := context.Background()

	alice := WellKnown("alice", newKey(t).PublicKey)
	bob := WellKnown("bob", newKey(t).PublicKey)
	anon := Anonymous(newKey(t).PublicKey)

	require.NoError(t, r.RegisterWellKnown(ctx, alice))

	got, err := r.Lookup(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)
	require.Equal(t, alice.PublicKey, got.PublicKey)

	_, err = r.Lookup(ctx, bob.ID)
	require.True(t, errors.Is(err, ErrUnknownParty))

	owner, err := r.WellKnown(ctx, alice)
	require.NoError(t, err)
	require.True(t, owner.Equal(alice))

	_, err = r.WellKnown(ctx, anon)
	require.True(t, errors.Is(err, ErrUnknownParty))

	require.NoError(t, r.RegisterAnonymous(ctx, anon, bob))
	require.NoError(t, r.RegisterAnonymous(ctx, anon, bob))

	owner, err = r.WellKnown(ctx, anon)
	require.NoError(t, err)
	require.True(t, owner.Equal(bob))

	err = r.RegisterAnonymous(ctx, anon, alice)
	require.True(t, errors.Is(err, ErrConflictingOwner))

	require.Error(t, r.RegisterWellKnown(ctx, anon))
	require.Error(t, r.RegisterAnonymous(ctx, bob, alice))
}

func TestDirectory(t *testing.T) {
	exerciseRegistry(t, NewDirectory())
}

func TestPGRegistry(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	require.NoError(t, mghelper.CreateSchema(context.Background(), db, &PartyDao{}))

	exerciseRegistry(t, NewPGRegistry(db))
}
