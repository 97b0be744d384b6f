package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/medalroll/internal/kv"
	"github.com/BradenHooton/medalroll/internal/metrics"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/BradenHooton/medalroll/internal/repositories"
	"github.com/BradenHooton/medalroll/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newMemoryLimiter returns a limiter over an in-memory store with a controllable clock
func newMemoryLimiter(t *testing.T, config services.RateLimitConfig) (*services.RateLimitService, *time.Time) {
	t.Helper()

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	limiter := services.NewRateLimitService(
		repositories.NewRateLimitCounterRepository(store),
		config,
		metrics.NewWithRegistry(prometheus.NewRegistry()),
		testLogger(),
	)
	limiter.SetClock(func() time.Time { return now })

	return limiter, &now
}

func TestRateLimitService_FixedWindow(t *testing.T) {
	limiter, now := newMemoryLimiter(t, services.DefaultRateLimitConfig())
	ctx := context.Background()
	start := *now

	for i := 1; i <= 10; i++ {
		result, err := limiter.CheckAndConsume(ctx, "user-1", models.ActionContactRequest)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 10-i, result.Remaining)
		assert.Equal(t, 10, result.Limit)
		assert.True(t, result.ResetAt.Equal(start.Add(24*time.Hour)))
		*now = now.Add(time.Minute)
	}

	result, err := limiter.CheckAndConsume(ctx, "user-1", models.ActionContactRequest)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.True(t, result.ResetAt.Equal(start.Add(24*time.Hour)))

	// Other identities are counted separately
	result, err = limiter.CheckAndConsume(ctx, "user-2", models.ActionContactRequest)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 9, result.Remaining)
}

func TestRateLimitService_WindowReset(t *testing.T) {
	limiter, now := newMemoryLimiter(t, services.DefaultRateLimitConfig())
	ctx := context.Background()
	start := *now

	for i := 0; i < 5; i++ {
		result, err := limiter.CheckAndConsume(ctx, "203.0.113.9", models.ActionLogin)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.CheckAndConsume(ctx, "203.0.113.9", models.ActionLogin)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// At the reset instant the window is still closed
	*now = start.Add(15 * time.Minute)
	result, err = limiter.CheckAndConsume(ctx, "203.0.113.9", models.ActionLogin)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	*now = start.Add(15*time.Minute + time.Millisecond)
	result, err = limiter.CheckAndConsume(ctx, "203.0.113.9", models.ActionLogin)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 4, result.Remaining)
	assert.True(t, result.ResetAt.Equal(now.Add(15*time.Minute)))
}

func TestRateLimitService_DenialDoesNotWrite(t *testing.T) {
	resetAt := time.Now().Add(time.Hour)
	saves := 0

	repo := &services.MockRateLimitCounterRepository{
		GetFunc: func(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
			return &models.RateLimitCounter{Count: 3, WindowResetAt: resetAt}, nil
		},
		SaveFunc: func(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error {
			saves++
			return nil
		},
	}

	limiter := services.NewRateLimitService(repo, services.DefaultRateLimitConfig(), nil, testLogger())

	result, err := limiter.CheckAndConsume(context.Background(), "198.51.100.1", models.ActionRegister)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, saves)
}

func TestRateLimitService_KeysAreTyped(t *testing.T) {
	var seen []string
	repo := &services.MockRateLimitCounterRepository{
		GetFunc: func(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
			seen = append(seen, key.String())
			return nil, models.ErrNotFound
		},
	}

	limiter := services.NewRateLimitService(repo, services.DefaultRateLimitConfig(), nil, testLogger())
	ctx := context.Background()

	_, err := limiter.CheckAndConsume(ctx, "2001:db8::1", models.ActionAPIGeneral)
	require.NoError(t, err)
	_, err = limiter.CheckAndConsume(ctx, "u1", models.ActionImageUpload)
	require.NoError(t, err)

	assert.Equal(t, []string{"ratelimit:api:2001%3Adb8%3A%3A1", "ratelimit:upload:u1"}, seen)
}

func TestRateLimitService_UnknownAction(t *testing.T) {
	limiter, _ := newMemoryLimiter(t, services.DefaultRateLimitConfig())

	_, err := limiter.CheckAndConsume(context.Background(), "u1", models.RateLimitAction("DOWNLOAD"))
	assert.ErrorIs(t, err, models.ErrUnknownRateLimitAction)

	_, err = limiter.Peek(context.Background(), "u1", models.RateLimitAction("DOWNLOAD"))
	assert.ErrorIs(t, err, models.ErrUnknownRateLimitAction)
}

func TestRateLimitService_StoreFailurePolicy(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name       string
		failClosed bool
		getErr     error
		saveErr    error
	}{
		{"read failure fails open", false, storeErr, nil},
		{"write failure fails open", false, nil, storeErr},
		{"read failure fails closed", true, storeErr, nil},
		{"write failure fails closed", true, nil, storeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &services.MockRateLimitCounterRepository{
				GetFunc: func(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return nil, models.ErrNotFound
				},
				SaveFunc: func(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error {
					return tt.saveErr
				},
			}

			config := services.DefaultRateLimitConfig()
			config.FailClosed = tt.failClosed
			m := metrics.NewWithRegistry(prometheus.NewRegistry())
			limiter := services.NewRateLimitService(repo, config, m, testLogger())

			result, err := limiter.CheckAndConsume(context.Background(), "u1", models.ActionContactRequest)

			if tt.failClosed {
				var storageErr *models.StorageError
				require.True(t, errors.As(err, &storageErr))
				assert.True(t, storageErr.Retryable)
				assert.ErrorIs(t, err, storeErr)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 9, result.Remaining)
		})
	}
}

func TestRateLimitService_StoreTimeout(t *testing.T) {
	repo := &services.MockRateLimitCounterRepository{
		GetFunc: func(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	config := services.DefaultRateLimitConfig()
	config.StoreTimeout = 20 * time.Millisecond
	limiter := services.NewRateLimitService(repo, config, nil, testLogger())

	start := time.Now()
	result, err := limiter.CheckAndConsume(context.Background(), "u1", models.ActionContactRequest)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRateLimitService_Peek(t *testing.T) {
	limiter, _ := newMemoryLimiter(t, services.DefaultRateLimitConfig())
	ctx := context.Background()

	result, err := limiter.Peek(ctx, "u1", models.ActionContactRequest)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Remaining)

	for i := 0; i < 3; i++ {
		_, err := limiter.CheckAndConsume(ctx, "u1", models.ActionContactRequest)
		require.NoError(t, err)
	}

	// Peeking repeatedly does not consume
	for i := 0; i < 3; i++ {
		result, err = limiter.Peek(ctx, "u1", models.ActionContactRequest)
		require.NoError(t, err)
		assert.Equal(t, 7, result.Remaining)
		assert.True(t, result.Allowed)
	}
}

func TestApplyRateLimitOverrides(t *testing.T) {
	rules := services.ApplyRateLimitOverrides(
		models.DefaultRateLimitRules(),
		map[string]int{"CONTACT_REQUEST": 2, "NOT_AN_ACTION": 7},
		map[string]time.Duration{"LOGIN": time.Hour},
	)

	assert.Equal(t, 2, rules[models.ActionContactRequest].MaxRequests)
	assert.Equal(t, 24*time.Hour, rules[models.ActionContactRequest].Window)
	assert.Equal(t, time.Hour, rules[models.ActionLogin].Window)
	assert.Equal(t, 5, rules[models.ActionLogin].MaxRequests)
	assert.Len(t, rules, 7)

	config := services.DefaultRateLimitConfig()
	config.Rules = rules
	limiter, _ := newMemoryLimiter(t, config)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.CheckAndConsume(ctx, "u1", models.ActionContactRequest)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
	result, err := limiter.CheckAndConsume(ctx, "u1", models.ActionContactRequest)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}
