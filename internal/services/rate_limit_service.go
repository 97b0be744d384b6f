package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/medalroll/internal/metrics"
	"github.com/BradenHooton/medalroll/internal/models"
)

// RateLimitCounterRepository defines the counter store operations the limiter needs
type RateLimitCounterRepository interface {
	Get(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error)
	Save(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error
}

// RateLimitConfig holds configuration for rate limiting behavior
type RateLimitConfig struct {
	Rules        map[models.RateLimitAction]models.RateLimitRule
	FailClosed   bool          // deny with a StorageError instead of allowing when the store fails
	StoreTimeout time.Duration // bound on each counter store call
}

// DefaultRateLimitConfig returns the built-in rules, failing open with a 500ms store timeout
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rules:        models.DefaultRateLimitRules(),
		StoreTimeout: 500 * time.Millisecond,
	}
}

// ApplyRateLimitOverrides replaces MaxRequests and Window for the named actions.
// Unknown action names and non-positive values are ignored.
func ApplyRateLimitOverrides(
	rules map[models.RateLimitAction]models.RateLimitRule,
	maxOverrides map[string]int,
	windowOverrides map[string]time.Duration,
) map[models.RateLimitAction]models.RateLimitRule {
	out := make(map[models.RateLimitAction]models.RateLimitRule, len(rules))
	for action, rule := range rules {
		if v := maxOverrides[string(action)]; v > 0 {
			rule.MaxRequests = v
		}
		if v := windowOverrides[string(action)]; v > 0 {
			rule.Window = v
		}
		out[action] = rule
	}
	return out
}

// RateLimitService implements per-action fixed-window counting.
//
// The read and the write of a counter are separate store calls, so two concurrent
// consumptions of the same key can both read Count=n and both write n+1. Under true
// parallelism the limit may therefore be exceeded by a small margin.
type RateLimitService struct {
	repo    RateLimitCounterRepository
	config  RateLimitConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(repo RateLimitCounterRepository, config RateLimitConfig, m *metrics.Metrics, logger *slog.Logger) *RateLimitService {
	if config.Rules == nil {
		config.Rules = models.DefaultRateLimitRules()
	}
	return &RateLimitService{
		repo:    repo,
		config:  config,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests
func (s *RateLimitService) SetClock(now func() time.Time) {
	s.now = now
}

// Rule returns the configured rule for an action
func (s *RateLimitService) Rule(action models.RateLimitAction) (models.RateLimitRule, bool) {
	rule, ok := s.config.Rules[action]
	return rule, ok
}

// CheckAndConsume counts one request against identity's window for action.
// A denial does not write; Remaining is 0 and ResetAt is the end of the current window.
func (s *RateLimitService) CheckAndConsume(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error) {
	rule, ok := s.config.Rules[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownRateLimitAction, action)
	}

	now := s.now()
	key := models.RateLimitKey{Action: action, Identity: identity}

	counter, err := s.read(ctx, key)
	if err != nil {
		return s.storeFailure(action, rule, now, "read_rate_limit_counter", err)
	}

	switch {
	case counter == nil || counter.Expired(now):
		counter = &models.RateLimitCounter{Count: 1, WindowResetAt: now.Add(rule.Window)}
	case counter.Count >= rule.MaxRequests:
		s.metrics.ObserveRateLimit(string(action), false)
		s.logger.Warn("rate limit exceeded",
			slog.String("action", string(action)),
			slog.String("key", key.String()),
			slog.Int("count", counter.Count),
			slog.Time("reset_at", counter.WindowResetAt))
		return &models.RateLimitResult{
			Allowed:   false,
			Limit:     rule.MaxRequests,
			Remaining: 0,
			ResetAt:   counter.WindowResetAt,
		}, nil
	default:
		counter.Count++
	}

	if err := s.write(ctx, key, counter, now); err != nil {
		return s.storeFailure(action, rule, now, "write_rate_limit_counter", err)
	}

	s.metrics.ObserveRateLimit(string(action), true)

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - counter.Count,
		ResetAt:   counter.WindowResetAt,
	}, nil
}

// Peek reports the current window state without consuming
func (s *RateLimitService) Peek(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error) {
	rule, ok := s.config.Rules[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownRateLimitAction, action)
	}

	now := s.now()
	key := models.RateLimitKey{Action: action, Identity: identity}

	counter, err := s.read(ctx, key)
	if err != nil {
		result, failErr := s.storeFailure(action, rule, now, "read_rate_limit_counter", err)
		if result != nil {
			result.Remaining = rule.MaxRequests
		}
		return result, failErr
	}

	if counter == nil || counter.Expired(now) {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests,
			ResetAt:   now.Add(rule.Window),
		}, nil
	}

	remaining := rule.MaxRequests - counter.Count
	if remaining < 0 {
		remaining = 0
	}

	return &models.RateLimitResult{
		Allowed:   remaining > 0,
		Limit:     rule.MaxRequests,
		Remaining: remaining,
		ResetAt:   counter.WindowResetAt,
	}, nil
}

// read returns nil, nil when no counter exists
func (s *RateLimitService) read(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	counter, err := s.repo.Get(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return counter, err
}

func (s *RateLimitService) write(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.repo.Save(ctx, key, counter, now)
}

func (s *RateLimitService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// storeFailure applies the failure policy. Failing open allows the request as if it were
// the first of a fresh window.
func (s *RateLimitService) storeFailure(action models.RateLimitAction, rule models.RateLimitRule, now time.Time, op string, err error) (*models.RateLimitResult, error) {
	policy := "fail_open"
	if s.config.FailClosed {
		policy = "fail_closed"
	}

	s.metrics.IncrementStoreErrors(string(action), policy)
	s.logger.Error("rate limit store failure",
		slog.String("action", string(action)),
		slog.String("op", op),
		slog.String("policy", policy),
		slog.Any("error", err))

	if s.config.FailClosed {
		return nil, &models.StorageError{Op: op, Retryable: true, Err: err}
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - 1,
		ResetAt:   now.Add(rule.Window),
	}, nil
}
