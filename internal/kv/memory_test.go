package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	// Returned slices are copies
	got[0] = 'x'
	again, _ := store.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_GetByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "ratelimit:contact:u2", []byte("b"), 0))
	require.NoError(t, store.Set(ctx, "ratelimit:contact:u1", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, "ratelimit:login:1.2.3.4", []byte("c"), 0))

	values, err := store.GetByPrefix(ctx, "ratelimit:contact:")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, values)

	values, err = store.GetByPrefix(ctx, "nothing:")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	assert.Error(t, store.Set(ctx, "k", []byte("v"), 0))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `ratelimit:api:\[::1\]`, escapeGlob("ratelimit:api:[::1]"))
	assert.Equal(t, `a\*b\?`, escapeGlob("a*b?"))
}
