package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/medalroll/internal/auth"
	"github.com/BradenHooton/medalroll/internal/models"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	"github.com/go-chi/httprate"
)

// ActionLimiter counts one request against an action's fixed window
type ActionLimiter interface {
	CheckAndConsume(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error)
}

// IdentityFunc derives the counter identity for a request
type IdentityFunc func(r *http.Request) string

// IdentityByIP keys counters by the client address
func IdentityByIP(ipConfig *pkghttp.IPConfig) IdentityFunc {
	return func(r *http.Request) string {
		return pkghttp.ExtractClientIP(r, ipConfig)
	}
}

// IdentityByUserID keys counters by the authenticated user, falling back to the client address
func IdentityByUserID(ipConfig *pkghttp.IPConfig) IdentityFunc {
	return func(r *http.Request) string {
		if userID := auth.GetUserIDFromContext(r); userID != "" {
			return userID
		}
		return pkghttp.ExtractClientIP(r, ipConfig)
	}
}

// RateLimitByAction consumes one request of action per call and reports the window
// in X-RateLimit-* headers. Denied requests get 429 with Retry-After; a fail-closed
// store failure gets 503.
func RateLimitByAction(limiter ActionLimiter, action models.RateLimitAction, identity IdentityFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.CheckAndConsume(r.Context(), identity(r), action)
			if err != nil {
				var storageErr *models.StorageError
				if errors.As(err, &storageErr) {
					pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable, please retry")
					return
				}
				logger.Error("rate limit check failed", slog.String("action", string(action)), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			SetRateLimitHeaders(w, result)

			if !result.Allowed {
				pkghttp.WriteRateLimited(w, time.Until(result.ResetAt))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders writes the window state; X-RateLimit-Reset is a unix timestamp
func SetRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// ThrottleByIP is a coarse in-process per-IP limit for endpoints that never touch the
// counter store, such as challenge issuance.
func ThrottleByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, try again in 1 minute")
		}),
	)
}
