package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/medalroll/internal/models"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
)

// ChallengeIssuer mints signed arithmetic challenges
type ChallengeIssuer interface {
	NewChallenge() (*models.Challenge, error)
}

// ChallengeHandler serves the human-verification question shown with the contact form
type ChallengeHandler struct {
	issuer ChallengeIssuer
	logger *slog.Logger
}

// NewChallengeHandler creates a new ChallengeHandler
func NewChallengeHandler(issuer ChallengeIssuer, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{issuer: issuer, logger: logger}
}

// ChallengeResponse carries the question and the token to echo back with the answer
type ChallengeResponse struct {
	Question  string `json:"question"`
	A         int    `json:"a"`
	B         int    `json:"b"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// GetChallenge issues a new challenge
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.issuer.NewChallenge()
	if err != nil {
		h.logger.Error("failed to issue challenge", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, ChallengeResponse{
		Question:  fmt.Sprintf("What is %d + %d?", challenge.A, challenge.B),
		A:         challenge.A,
		B:         challenge.B,
		Token:     challenge.Token,
		ExpiresAt: challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
