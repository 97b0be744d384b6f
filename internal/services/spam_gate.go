package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/BradenHooton/medalroll/internal/metrics"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	challengeIssuer   = "medalroll"
	challengeAudience = "spam_challenge"
	challengeMaxTerm  = 10
)

// SpamGate issues and verifies honeypot + arithmetic challenges for anonymous-facing forms.
// It holds no state: the operands travel in a signed token.
type SpamGate struct {
	secret  []byte
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSpamGate creates a SpamGate signing challenges with secret
func NewSpamGate(secret string, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *SpamGate {
	return &SpamGate{
		secret:  []byte(secret),
		ttl:     ttl,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests
func (g *SpamGate) SetClock(now func() time.Time) {
	g.now = now
}

// NewChallenge picks two operands in [1,10] and signs them
func (g *SpamGate) NewChallenge() (*models.Challenge, error) {
	a, err := randomTerm()
	if err != nil {
		return nil, err
	}
	b, err := randomTerm()
	if err != nil {
		return nil, err
	}

	now := g.now()
	expiresAt := now.Add(g.ttl)

	claims := &models.ChallengeClaims{
		A: a,
		B: b,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    challengeIssuer,
			Audience:  jwt.ClaimStrings{challengeAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	return &models.Challenge{A: a, B: b, Token: token, ExpiresAt: expiresAt}, nil
}

// Verify checks the honeypot first, then the signed challenge and its answer.
// Returns models.ErrSpamDetected or models.ErrChallengeFailed.
func (g *SpamGate) Verify(sub models.SpamSubmission) error {
	if sub.Honeypot != "" {
		g.metrics.IncrementSpamRejections("honeypot")
		return models.ErrSpamDetected
	}

	claims, err := g.parse(sub.ChallengeToken)
	if err != nil {
		g.metrics.IncrementSpamRejections("invalid_token")
		g.logger.Debug("challenge token rejected", slog.Any("error", err))
		return models.ErrChallengeFailed
	}

	if sub.Answer != claims.A+claims.B {
		g.metrics.IncrementSpamRejections("wrong_answer")
		return models.ErrChallengeFailed
	}

	return nil
}

func (g *SpamGate) parse(tokenString string) (*models.ChallengeClaims, error) {
	if tokenString == "" {
		return nil, errors.New("missing challenge token")
	}

	claims := &models.ChallengeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	},
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(challengeIssuer),
		jwt.WithAudience(challengeAudience),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid challenge token")
	}

	if claims.A < 1 || claims.A > challengeMaxTerm || claims.B < 1 || claims.B > challengeMaxTerm {
		return nil, fmt.Errorf("challenge operands out of range: %d, %d", claims.A, claims.B)
	}

	return claims, nil
}

func randomTerm() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(challengeMaxTerm))
	if err != nil {
		return 0, fmt.Errorf("failed to generate challenge: %w", err)
	}
	return int(n.Int64()) + 1, nil
}
