package services_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/BradenHooton/medalroll/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChallengeSecret = "challenge-secret-for-tests-only!"

func newTestSpamGate() *services.SpamGate {
	return services.NewSpamGate(testChallengeSecret, 10*time.Minute, nil, testLogger())
}

func TestSpamGate_NewChallenge(t *testing.T) {
	gate := newTestSpamGate()

	for i := 0; i < 50; i++ {
		c, err := gate.NewChallenge()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, c.A, 1)
		assert.LessOrEqual(t, c.A, 10)
		assert.GreaterOrEqual(t, c.B, 1)
		assert.LessOrEqual(t, c.B, 10)
		assert.NotEmpty(t, c.Token)
	}
}

func TestSpamGate_Verify(t *testing.T) {
	gate := newTestSpamGate()
	c, err := gate.NewChallenge()
	require.NoError(t, err)

	tests := []struct {
		name     string
		sub      models.SpamSubmission
		expected error
	}{
		{"correct answer", models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B}, nil},
		{"whitespace honeypot is filled", models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B, Honeypot: " "}, models.ErrSpamDetected},
		{"wrong answer", models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B + 1}, models.ErrChallengeFailed},
		{"missing token", models.SpamSubmission{Answer: c.A + c.B}, models.ErrChallengeFailed},
		{"tampered token", models.SpamSubmission{ChallengeToken: c.Token + "x", Answer: c.A + c.B}, models.ErrChallengeFailed},
		{"honeypot filled", models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B, Honeypot: "http://spam.example"}, models.ErrSpamDetected},
		{"honeypot wins over bad answer", models.SpamSubmission{Answer: -1, Honeypot: "x"}, models.ErrSpamDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Verify(tt.sub)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestSpamGate_ExpiredChallenge(t *testing.T) {
	gate := newTestSpamGate()
	now := time.Now()
	gate.SetClock(func() time.Time { return now })

	c, err := gate.NewChallenge()
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)
	assert.ErrorIs(t, gate.Verify(models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B}), models.ErrChallengeFailed)
}

func TestSpamGate_RejectsForeignSignature(t *testing.T) {
	other := services.NewSpamGate("a-different-secret-entirely-here", 10*time.Minute, nil, testLogger())
	c, err := other.NewChallenge()
	require.NoError(t, err)

	gate := newTestSpamGate()
	assert.ErrorIs(t, gate.Verify(models.SpamSubmission{ChallengeToken: c.Token, Answer: c.A + c.B}), models.ErrChallengeFailed)
}

func TestSpamGate_RejectsOutOfRangeOperands(t *testing.T) {
	// A correctly signed token with operands the gate never issues
	claims := &models.ChallengeClaims{
		A: 0,
		B: 50,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "medalroll",
			Audience:  jwt.ClaimStrings{"spam_challenge"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testChallengeSecret))
	require.NoError(t, err)

	gate := newTestSpamGate()
	assert.ErrorIs(t, gate.Verify(models.SpamSubmission{ChallengeToken: token, Answer: 50}), models.ErrChallengeFailed)
}
