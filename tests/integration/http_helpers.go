//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BradenHooton/medalroll/internal/auth"
	"github.com/BradenHooton/medalroll/internal/handlers"
	"github.com/BradenHooton/medalroll/internal/kv"
	"github.com/BradenHooton/medalroll/internal/metrics"
	middlewareCustom "github.com/BradenHooton/medalroll/internal/middleware"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/BradenHooton/medalroll/internal/repositories"
	"github.com/BradenHooton/medalroll/internal/routes"
	"github.com/BradenHooton/medalroll/internal/services"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	pkglogger "github.com/BradenHooton/medalroll/pkg/logger"
)

const testJWTSecret = "integration-test-secret-0123456789abcdef"

// TestServer wires the production object graph over real PostgreSQL and Redis,
// with mail captured in memory
type TestServer struct {
	Server       *httptest.Server
	Mailer       *services.MockMailer
	Dispatcher   *services.NotificationDispatcher
	TokenManager *auth.TokenManager
	SpamGate     *services.SpamGate
	Contacts     *services.ContactService
	Limiter      *services.RateLimitService
	Requests     *repositories.ContactRequestRepository
}

// NewTestServer builds the server. Disclosure selects what an approval reveals.
func NewTestServer(db *TestDB, rdb *TestRedis, disclosure models.Disclosure) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	redisStore := kv.NewRedisStore(rdb.Client)
	userRepo := repositories.NewUserRepository(db.DB)
	contactRepo := repositories.NewContactRequestRepository(db.DB)

	limiter := services.NewRateLimitService(
		repositories.NewRateLimitCounterRepository(redisStore),
		services.DefaultRateLimitConfig(), m, logger)

	mailer := &services.MockMailer{}
	dispatcher := services.NewNotificationDispatcher(2, 64, 5*time.Second, m, logger)
	audit := pkglogger.NewAuditLogger(logger)

	contacts := services.NewContactService(
		contactRepo,
		repositories.NewPersonRepository(db.DB),
		userRepo,
		limiter,
		services.NewNotificationService(mailer, userRepo, "https://medalroll.test", logger),
		dispatcher,
		services.ContactServiceConfig{Disclosure: disclosure, StoreTimeout: 3 * time.Second},
		audit, m, logger,
	)
	gate := services.NewSpamGate(testJWTSecret+":challenge", 10*time.Minute, m, logger)
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute)
	ipConfig := &pkghttp.IPConfig{}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router, routes.Dependencies{
		Contact:   handlers.NewContactHandler(contacts, gate, limiter, audit, ipConfig, logger),
		Challenge: handlers.NewChallengeHandler(gate, logger),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": db.DB.HealthCheck,
			"redis":    redisStore.Health,
		}),
		TokenManager: tm,
		Limiter:      limiter,
		IPConfig:     ipConfig,
		ChallengeRPM: 1000,
		Logger:       logger,
	})

	return &TestServer{
		Server:       httptest.NewServer(router),
		Mailer:       mailer,
		Dispatcher:   dispatcher,
		TokenManager: tm,
		SpamGate:     gate,
		Contacts:     contacts,
		Limiter:      limiter,
		Requests:     contactRepo,
	}
}

// Close stops the server and drains pending notifications
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Dispatcher.Close()
}

// Do sends a JSON request as userID (anonymous when empty)
func (ts *TestServer) Do(ctx context.Context, method, path, userID string, body interface{}) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, ts.Server.URL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		token, err := ts.TokenManager.GenerateAccessToken(userID, "", "")
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp, data, err
}

// CreateBody returns a contact request payload with a solved challenge
func (ts *TestServer) CreateBody(personID, message string) (map[string]interface{}, error) {
	challenge, err := ts.SpamGate.NewChallenge()
	if err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}
	return map[string]interface{}{
		"person_id":        personID,
		"message":          message,
		"challenge_token":  challenge.Token,
		"challenge_answer": challenge.A + challenge.B,
	}, nil
}
