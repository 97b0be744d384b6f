package routes

import (
	"log/slog"

	"github.com/BradenHooton/medalroll/internal/auth"
	"github.com/BradenHooton/medalroll/internal/handlers"
	"github.com/BradenHooton/medalroll/internal/middleware"
	"github.com/BradenHooton/medalroll/internal/models"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds everything the route table needs
type Dependencies struct {
	Contact      *handlers.ContactHandler
	Challenge    *handlers.ChallengeHandler
	Health       *handlers.HealthHandler
	TokenManager *auth.TokenManager
	Limiter      middleware.ActionLimiter
	IPConfig     *pkghttp.IPConfig
	ChallengeRPM int
	Logger       *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	// Public routes - no authentication required
	router.Get("/health", deps.Health.Health)
	router.Handle("/metrics", promhttp.Handler())
	router.With(middleware.ThrottleByIP(deps.ChallengeRPM, deps.IPConfig)).
		Get("/spam/challenge", deps.Challenge.GetChallenge)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByAction(deps.Limiter, models.ActionAPIGeneral,
			middleware.IdentityByIP(deps.IPConfig), deps.Logger))
		r.Use(auth.AuthMiddleware(deps.TokenManager))

		deps.Contact.RegisterRoutes(r)
	})
}
