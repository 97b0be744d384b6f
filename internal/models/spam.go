package models

import "time"

// Challenge is an arithmetic question issued with a form render.
// The token binds A and B so the answer is checked against server-issued operands.
type Challenge struct {
	A         int       `json:"a"`
	B         int       `json:"b"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SpamSubmission holds the anti-bot fields posted with a form
type SpamSubmission struct {
	ChallengeToken string
	Answer         int
	Honeypot       string
}
