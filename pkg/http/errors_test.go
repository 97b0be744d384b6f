package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		status   int
		code     string
		message  string
		details  string
	}{
		{"bad request", func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "Invalid input") }, 400, "bad_request", "Invalid input", ""},
		{"unauthorized", func(w http.ResponseWriter) { pkghttp.WriteUnauthorized(w, "Authentication required") }, 401, "unauthorized", "Authentication required", ""},
		{"forbidden", func(w http.ResponseWriter) { pkghttp.WriteForbidden(w, "Access denied") }, 403, "forbidden", "Access denied", ""},
		{"not found", func(w http.ResponseWriter) { pkghttp.WriteNotFound(w, "Resource not found") }, 404, "not_found", "Resource not found", ""},
		{"conflict", func(w http.ResponseWriter) { pkghttp.WriteConflict(w, "Already decided") }, 409, "conflict", "Already decided", ""},
		{"internal", func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "Internal server error") }, 500, "internal_error", "Internal server error", ""},
		{"unavailable", func(w http.ResponseWriter) { pkghttp.WriteServiceUnavailable(w, "Try again") }, 503, "service_unavailable", "Try again", "retryable"},
		{"custom", func(w http.ResponseWriter) { pkghttp.WriteErrorWithDetails(w, 400, "challenge_failed", "Wrong", "fetch a new challenge") }, 400, "challenge_failed", "Wrong", "fetch a new challenge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.details, resp.Details)
		})
	}
}

func TestErrorResponse_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteError(w, 401, "unauthorized", "Invalid token")

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "details")
}

func TestWriteRateLimited(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		header     string
		message    string
	}{
		{"sub-second rounds up", 200 * time.Millisecond, "1", "Too many requests, try again in 1 minute"},
		{"negative clamps", -time.Minute, "1", "Too many requests, try again in 1 minute"},
		{"seconds round up", 61500 * time.Millisecond, "62", "Too many requests, try again in 2 minutes"},
		{"hours", 3 * time.Hour, "10800", "Too many requests, try again in 180 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			pkghttp.WriteRateLimited(w, tt.retryAfter)

			assert.Equal(t, 429, w.Code)
			assert.Equal(t, tt.header, w.Header().Get("Retry-After"))

			resp := decodeError(t, w)
			assert.Equal(t, "rate_limit_exceeded", resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}
