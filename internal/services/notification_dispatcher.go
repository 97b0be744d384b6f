package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/medalroll/internal/metrics"
)

var errPanicked = errors.New("notification job panicked")

// NotificationJob is one unit of background delivery work
type NotificationJob struct {
	Kind string
	Run  func(ctx context.Context) error
}

// NotificationDispatcher runs notification jobs on a fixed pool of workers reading a
// bounded queue. Jobs never block the caller: a full queue drops the job.
type NotificationDispatcher struct {
	jobs    chan NotificationJob
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotificationDispatcher starts workers immediately
func NewNotificationDispatcher(workers, queueSize int, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *NotificationDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &NotificationDispatcher{
		jobs:    make(chan NotificationJob, queueSize),
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues a job and reports whether it was accepted
func (d *NotificationDispatcher) Dispatch(kind string, run func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Error("notification dropped after shutdown", slog.String("kind", kind))
		d.metrics.IncrementNotificationsDropped()
		return false
	}

	select {
	case d.jobs <- NotificationJob{Kind: kind, Run: run}:
		return true
	default:
		d.logger.Error("notification queue full, dropping job", slog.String("kind", kind))
		d.metrics.IncrementNotificationsDropped()
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()

	for job := range d.jobs {
		d.run(job)
	}
}

func (d *NotificationDispatcher) run(job NotificationJob) {
	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("notification job panicked", slog.String("kind", job.Kind), slog.Any("panic", p))
			d.metrics.ObserveNotification(job.Kind, errPanicked)
		}
	}()

	start := time.Now()
	err := job.Run(ctx)
	d.metrics.ObserveNotification(job.Kind, err)

	if err != nil {
		d.logger.Error("notification failed",
			slog.String("kind", job.Kind),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return
	}

	d.logger.Debug("notification delivered",
		slog.String("kind", job.Kind),
		slog.Duration("elapsed", time.Since(start)))
}
