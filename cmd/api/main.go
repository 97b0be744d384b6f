package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/medalroll/internal/auth"
	"github.com/BradenHooton/medalroll/internal/background"
	"github.com/BradenHooton/medalroll/internal/config"
	"github.com/BradenHooton/medalroll/internal/database"
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
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("rate_limit_failure_policy", cfg.RateLimit.FailurePolicy),
		slog.String("disclosure", cfg.Contact.Disclosure))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)

	// Initialize database
	db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
	if err != nil {
		startupCancel()
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()

	// Counter store: Redis when configured, otherwise in-process memory with a sweeper
	redisClient, err := kv.NewRedisClient(startupCtx, cfg.Redis)
	startupCancel()
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		counterStore   kv.Store
		cleanupManager *background.CleanupManager
		redisHealth    handlers.HealthCheck
	)
	if redisClient != nil {
		defer redisClient.Close()
		redisStore := kv.NewRedisStore(redisClient)
		counterStore = redisStore
		redisHealth = redisStore.Health
		logger.Info("rate limit counters stored in redis")
	} else {
		memoryStore := kv.NewMemoryStore()
		counterStore = memoryStore
		cleanupManager = background.NewCleanupManager(memoryStore, m, logger, cfg.RateLimit.CleanupInterval)
		logger.Warn("REDIS_URL not set, rate limit counters are per-process")
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	personRepo := repositories.NewPersonRepository(db)
	contactRepo := repositories.NewContactRequestRepository(db)
	counterRepo := repositories.NewRateLimitCounterRepository(counterStore)

	// Rate limiting service
	rateLimitConfig := services.RateLimitConfig{
		Rules: services.ApplyRateLimitOverrides(models.DefaultRateLimitRules(),
			cfg.RateLimit.MaxOverrides, cfg.RateLimit.WindowOverrides),
		FailClosed:   cfg.RateLimit.FailurePolicy == config.FailClosed,
		StoreTimeout: cfg.RateLimit.StoreTimeout,
	}
	rateLimitService := services.NewRateLimitService(counterRepo, rateLimitConfig, m, logger)

	// Mail delivery
	var mailer services.Mailer
	if cfg.Email.Provider == config.EmailProviderSES {
		mailer, err = services.NewAWSSESMailer(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		mailer = services.NewLogMailer(logger)
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	notificationService := services.NewNotificationService(mailer, userRepo, cfg.Email.SiteURL, logger)
	dispatcher := services.NewNotificationDispatcher(
		cfg.Contact.DispatcherWorkers,
		cfg.Contact.DispatcherQueueLen,
		cfg.Contact.NotifyTimeout,
		m,
		logger,
	)
	contactService := services.NewContactService(
		contactRepo,
		personRepo,
		userRepo,
		rateLimitService,
		notificationService,
		dispatcher,
		services.ContactServiceConfig{
			Disclosure:   models.Disclosure(cfg.Contact.Disclosure),
			StoreTimeout: cfg.Contact.StoreTimeout,
		},
		auditLogger,
		m,
		logger,
	)
	spamGate := services.NewSpamGate(cfg.SpamGate.ChallengeSecret, cfg.SpamGate.ChallengeTTL, m, logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: cfg.Server.TrustedProxies,
		EdgeHeader:     cfg.Server.EdgeIPHeader,
	}

	// Initialize handlers
	contactHandler := handlers.NewContactHandler(contactService, spamGate, rateLimitService, auditLogger, ipConfig, logger)
	challengeHandler := handlers.NewChallengeHandler(spamGate, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"database": db.HealthCheck,
		"redis":    redisHealth,
	})

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		Contact:      contactHandler,
		Challenge:    challengeHandler,
		Health:       healthHandler,
		TokenManager: tokenManager,
		Limiter:      rateLimitService,
		IPConfig:     ipConfig,
		ChallengeRPM: cfg.RateLimit.ChallengeRPM,
		Logger:       logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	if cleanupManager != nil {
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Deliver queued notifications before the pools close
	dispatcher.Close()

	logger.Info("server stopped gracefully")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
