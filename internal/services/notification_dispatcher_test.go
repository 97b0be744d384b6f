package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/medalroll/internal/metrics"
	"github.com/BradenHooton/medalroll/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNotificationDispatcher_RunsAndDrains(t *testing.T) {
	d := services.NewNotificationDispatcher(2, 16, time.Second, nil, testLogger())

	var ran int32
	for i := 0; i < 10; i++ {
		ok := d.Dispatch("owner_alert", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		assert.True(t, ok)
	}

	d.Close()
	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))

	// Closed dispatchers reject work, and Close is idempotent
	assert.False(t, d.Dispatch("owner_alert", func(ctx context.Context) error { return nil }))
	d.Close()
}

func TestNotificationDispatcher_DropsWhenFull(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	d := services.NewNotificationDispatcher(1, 1, time.Second, m, testLogger())

	release := make(chan struct{})
	started := make(chan struct{})

	assert.True(t, d.Dispatch("slow", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	// Worker busy: one slot in the queue, then drops
	assert.True(t, d.Dispatch("queued", func(ctx context.Context) error { return nil }))
	assert.False(t, d.Dispatch("dropped", func(ctx context.Context) error { return nil }))

	close(release)
	d.Close()
}

func TestNotificationDispatcher_TimeoutAndFailuresDoNotStopWorkers(t *testing.T) {
	d := services.NewNotificationDispatcher(1, 4, 10*time.Millisecond, nil, testLogger())

	var deadlineSeen, after int32
	d.Dispatch("slow", func(ctx context.Context) error {
		<-ctx.Done()
		atomic.StoreInt32(&deadlineSeen, 1)
		return ctx.Err()
	})
	d.Dispatch("failing", func(ctx context.Context) error { return errors.New("boom") })
	d.Dispatch("panicking", func(ctx context.Context) error { panic("bad template") })
	d.Dispatch("last", func(ctx context.Context) error {
		atomic.StoreInt32(&after, 1)
		return nil
	})

	d.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&deadlineSeen))
	assert.Equal(t, int32(1), atomic.LoadInt32(&after))
}
