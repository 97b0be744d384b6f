package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	SpamGate  SpamGateConfig
	Contact   ContactConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// RedisConfig holds the counter store connection. An empty URL selects the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	TrustedProxies []string
	EdgeIPHeader   string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// Email providers
const (
	EmailProviderSES = "ses"
	EmailProviderLog = "log"
)

type EmailConfig struct {
	Provider    string
	AWSRegion   string
	FromAddress string
	SiteURL     string
}

// Failure policies for the counter store
const (
	FailOpen   = "fail_open"
	FailClosed = "fail_closed"
)

type RateLimitConfig struct {
	FailurePolicy   string
	StoreTimeout    time.Duration
	CleanupInterval time.Duration
	// Overrides keyed by action name, e.g. RATE_LIMIT_CONTACT_REQUEST_MAX=20
	MaxOverrides    map[string]int
	WindowOverrides map[string]time.Duration
	ChallengeRPM    int
}

type SpamGateConfig struct {
	ChallengeSecret string
	ChallengeTTL    time.Duration
}

type ContactConfig struct {
	Disclosure         string
	StoreTimeout       time.Duration
	NotifyTimeout      time.Duration
	DispatcherWorkers  int
	DispatcherQueueLen int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "medalroll"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 1*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 1*time.Second),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			EdgeIPHeader:   getEnv("EDGE_IP_HEADER", "CF-Connecting-IP"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", defaultEmailProvider(env))),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@medalroll.local"),
			SiteURL:     getEnv("SITE_URL", "http://localhost:8080"),
		},
		RateLimit: RateLimitConfig{
			FailurePolicy:   strings.ToLower(getEnv("RATE_LIMIT_FAILURE_POLICY", FailOpen)),
			StoreTimeout:    getEnvAsDuration("RATE_LIMIT_STORE_TIMEOUT", 500*time.Millisecond),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
			MaxOverrides:    make(map[string]int),
			WindowOverrides: make(map[string]time.Duration),
			ChallengeRPM:    getEnvAsInt("RATE_LIMIT_CHALLENGE_RPM", 30),
		},
		SpamGate: SpamGateConfig{
			ChallengeSecret: getEnv("SPAM_CHALLENGE_SECRET", ""),
			ChallengeTTL:    getEnvAsDuration("SPAM_CHALLENGE_TTL", 10*time.Minute),
		},
		Contact: ContactConfig{
			Disclosure:         strings.ToLower(getEnv("CONTACT_DISCLOSURE", "owner_to_requester")),
			StoreTimeout:       getEnvAsDuration("CONTACT_STORE_TIMEOUT", 3*time.Second),
			NotifyTimeout:      getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
			DispatcherWorkers:  getEnvAsInt("NOTIFY_WORKERS", 4),
			DispatcherQueueLen: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

	if err := loadRateLimitOverrides(&cfg.RateLimit); err != nil {
		return nil, err
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	// Challenge tokens fall back to a key derived from the JWT secret
	if cfg.SpamGate.ChallengeSecret == "" {
		cfg.SpamGate.ChallengeSecret = jwtSecret + ":challenge"
	}

	switch cfg.RateLimit.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		return nil, fmt.Errorf("RATE_LIMIT_FAILURE_POLICY must be %q or %q (got %q)",
			FailOpen, FailClosed, cfg.RateLimit.FailurePolicy)
	}

	switch cfg.Contact.Disclosure {
	case "none", "owner_to_requester", "requester_to_owner":
	default:
		return nil, fmt.Errorf("CONTACT_DISCLOSURE must be none, owner_to_requester or requester_to_owner (got %q)",
			cfg.Contact.Disclosure)
	}

	switch cfg.Email.Provider {
	case EmailProviderSES, EmailProviderLog:
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be %q or %q (got %q)",
			EmailProviderSES, EmailProviderLog, cfg.Email.Provider)
	}

	if cfg.Contact.DispatcherWorkers < 1 {
		cfg.Contact.DispatcherWorkers = 1
	}

	return cfg, nil
}

// defaultEmailProvider logs mail locally and sends through SES in production
func defaultEmailProvider(env string) string {
	if env == "production" {
		return EmailProviderSES
	}
	return EmailProviderLog
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		// Default to no origins in production
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://localhost:3001",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3001",
	}
}

// loadRateLimitOverrides reads RATE_LIMIT_<ACTION>_MAX and RATE_LIMIT_<ACTION>_WINDOW.
// Unparseable values are ignored; an unknown action name is a configuration error.
func loadRateLimitOverrides(cfg *RateLimitConfig) error {
	for _, entry := range os.Environ() {
		key, _, _ := strings.Cut(entry, "=")
		rest, ok := strings.CutPrefix(key, "RATE_LIMIT_")
		if !ok {
			continue
		}

		var name string
		isWindow := false
		switch {
		case strings.HasSuffix(rest, "_MAX"):
			name = strings.TrimSuffix(rest, "_MAX")
		case strings.HasSuffix(rest, "_WINDOW"):
			name = strings.TrimSuffix(rest, "_WINDOW")
			isWindow = true
		default:
			continue
		}

		action, ok := models.ParseRateLimitAction(name)
		if !ok {
			return fmt.Errorf("%s: unknown rate limit action %q", key, name)
		}

		if isWindow {
			if v := getEnvAsDuration(key, 0); v > 0 {
				cfg.WindowOverrides[string(action)] = v
			}
			continue
		}
		if v := getEnvAsInt(key, 0); v > 0 {
			cfg.MaxOverrides[string(action)] = v
		}
	}
	return nil
}
