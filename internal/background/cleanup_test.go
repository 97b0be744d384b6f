package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/medalroll/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 0, s.err
}

func TestCleanupManager_RunOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "ratelimit:api:1.2.3.4", []byte(`{}`), time.Minute))
	require.NoError(t, store.Set(ctx, "ratelimit:contact:u1", []byte(`{}`), 24*time.Hour))

	cm := NewCleanupManager(store, nil, testLogger(), time.Minute)

	assert.Equal(t, int64(0), cm.RunOnce(ctx))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, int64(1), cm.RunOnce(ctx))
	assert.Equal(t, 1, store.Len())
}

func TestCleanupManager_RunOnceError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("boom")}
	cm := NewCleanupManager(sweeper, nil, testLogger(), time.Minute)

	assert.Equal(t, int64(0), cm.RunOnce(context.Background()))
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestCleanupManager_StartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	cm := NewCleanupManager(sweeper, nil, testLogger(), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
