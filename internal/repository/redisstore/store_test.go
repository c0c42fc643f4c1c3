package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client, nil)
}

func TestGetAbsent(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "med-plan.0.patient-Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "med-plan.0.patient-Max", `{"id":"p1"}`))

	val, ok, err := store.Get(ctx, "med-plan.0.patient-Max")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"p1"}`, val)
}

func TestEnsureExistsIsIdempotentAndNonDestructive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addr := "med-plan.0.patient-Max"

	require.NoError(t, store.EnsureExists(ctx, addr, "Patient Max"))

	val, ok, err := store.Get(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", val)

	// A second provisioning never clobbers a written value.
	require.NoError(t, store.Set(ctx, addr, `{"id":"p1"}`))
	require.NoError(t, store.EnsureExists(ctx, addr, "Patient Max"))

	val, _, err = store.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1"}`, val)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addr := "med-plan.0.patient-Max"

	require.NoError(t, store.EnsureExists(ctx, addr, "Patient Max"))
	require.NoError(t, store.Set(ctx, addr, `{}`))
	require.NoError(t, store.Delete(ctx, addr))

	_, ok, err := store.Get(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent address is not an error.
	require.NoError(t, store.Delete(ctx, addr))
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
