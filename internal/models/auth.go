package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the identity claims carried by a bearer access token.
// Tokens are issued by the catalog application; this service only verifies them.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ChallengeClaims bind the operands of an arithmetic challenge to a signed token
type ChallengeClaims struct {
	A int `json:"a"`
	B int `json:"b"`
	jwt.RegisteredClaims
}
