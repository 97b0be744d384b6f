package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/medalroll/internal/handlers"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	up := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name     string
		checks   map[string]handlers.HealthCheck
		status   int
		expected map[string]string
	}{
		{"all up", map[string]handlers.HealthCheck{"database": up, "redis": up}, http.StatusOK, map[string]string{"database": "up", "redis": "up"}},
		{"redis down", map[string]handlers.HealthCheck{"database": up, "redis": down}, http.StatusServiceUnavailable, map[string]string{"database": "up", "redis": "down"}},
		{"memory counter store", map[string]handlers.HealthCheck{"database": up, "redis": nil}, http.StatusOK, map[string]string{"database": "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.NewHealthHandler(tt.checks).Health(w, httptest.NewRequest("GET", "/health", nil))

			var resp handlers.HealthResponse
			handlers.AssertJSONResponse(t, w, tt.status, &resp)
			assert.Equal(t, tt.expected, resp.Dependencies)
		})
	}
}
