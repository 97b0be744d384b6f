package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Contact workflow errors
	ErrSelfContact     = errors.New("cannot send a contact request about your own record")
	ErrInvalidState    = errors.New("contact request has already been decided")
	ErrChallengeFailed = errors.New("incorrect answer to the security question")
	ErrSpamDetected    = errors.New("submission rejected")

	ErrUnknownRateLimitAction = errors.New("unknown rate limit action")
)

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is lets callers match any ValidationError against ErrBadRequest
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

// RateLimitExceededError carries the window state a client needs for backoff messaging
type RateLimitExceededError struct {
	Action    RateLimitAction
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, resets at %s", e.Action, e.ResetAt.UTC().Format(time.RFC3339))
}

// RetryAfter returns the wait before the window resets, never less than one second
func (e *RateLimitExceededError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// StorageError wraps a failure of the counter store or the request store.
// Retryable is true when the client may safely submit the same request again.
type StorageError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
