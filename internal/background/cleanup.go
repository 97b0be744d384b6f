package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/medalroll/internal/metrics"
)

// ExpiredSweeper removes entries whose TTL has passed
type ExpiredSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically sweeps expired rate limit counters from the in-memory store.
// Redis expires keys itself and needs no sweeper.
type CleanupManager struct {
	store    ExpiredSweeper
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store ExpiredSweeper, m *metrics.Metrics, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep every interval until Stop is called or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many counters were removed
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := cm.store.DeleteExpired(sweepCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired rate limit counters", slog.Any("error", err))
		return 0
	}

	cm.metrics.AddSwept(removed)
	if removed > 0 {
		cm.logger.Debug("expired rate limit counters swept", slog.Int64("removed", removed))
	}
	return removed
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
