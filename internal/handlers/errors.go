package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/medalroll/internal/models"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
)

// writeServiceError maps workflow errors onto HTTP responses
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, now time.Time, err error) {
	var (
		validationErr *models.ValidationError
		rateErr       *models.RateLimitExceededError
		storageErr    *models.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", validationErr.Message, validationErr.Field)
	case errors.As(err, &rateErr):
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateErr.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rateErr.ResetAt.Unix(), 10))
		pkghttp.WriteRateLimited(w, rateErr.RetryAfter(now))
	case errors.As(err, &storageErr):
		logger.Error("storage failure", slog.String("op", storageErr.Op), slog.Any("error", storageErr.Err))
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable, please retry")
	case errors.Is(err, models.ErrChallengeFailed):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "challenge_failed",
			"Incorrect answer to the security question", "fetch a new challenge and try again")
	case errors.Is(err, models.ErrSelfContact):
		pkghttp.WriteError(w, http.StatusForbidden, "self_contact", "You cannot send a contact request about your own record")
	case errors.Is(err, models.ErrInvalidState):
		pkghttp.WriteError(w, http.StatusConflict, "invalid_state", "This request has already been decided")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "This contact request already exists")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden: you cannot access this resource")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		logger.Error("unhandled error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
