package models

import (
	"net/url"
	"strings"
	"time"
)

// RateLimitAction classifies the operation being throttled
type RateLimitAction string

const (
	ActionLogin                RateLimitAction = "LOGIN"
	ActionRegister             RateLimitAction = "REGISTER"
	ActionPasswordResetRequest RateLimitAction = "PASSWORD_RESET_REQUEST"
	ActionPasswordResetConfirm RateLimitAction = "PASSWORD_RESET_CONFIRM"
	ActionContactRequest       RateLimitAction = "CONTACT_REQUEST"
	ActionImageUpload          RateLimitAction = "IMAGE_UPLOAD"
	ActionAPIGeneral           RateLimitAction = "API_GENERAL"
)

// KeyPrefix returns the counter namespace for the action
func (a RateLimitAction) KeyPrefix() string {
	switch a {
	case ActionLogin:
		return "login"
	case ActionRegister:
		return "register"
	case ActionPasswordResetRequest:
		return "pwreset_req"
	case ActionPasswordResetConfirm:
		return "pwreset_confirm"
	case ActionContactRequest:
		return "contact"
	case ActionImageUpload:
		return "upload"
	case ActionAPIGeneral:
		return "api"
	}
	return ""
}

// IdentityKind says whether an action is keyed by client IP or by user id
type IdentityKind string

const (
	IdentityIP     IdentityKind = "ip"
	IdentityUserID IdentityKind = "user_id"
)

// RateLimitRule is the static fixed-window configuration for one action
type RateLimitRule struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
	Identity    IdentityKind
}

// DefaultRateLimitRules returns a fresh copy of the built-in rule table
func DefaultRateLimitRules() map[RateLimitAction]RateLimitRule {
	return map[RateLimitAction]RateLimitRule{
		ActionLogin:                {MaxRequests: 5, Window: 15 * time.Minute, KeyPrefix: ActionLogin.KeyPrefix(), Identity: IdentityIP},
		ActionRegister:             {MaxRequests: 3, Window: time.Hour, KeyPrefix: ActionRegister.KeyPrefix(), Identity: IdentityIP},
		ActionPasswordResetRequest: {MaxRequests: 3, Window: time.Hour, KeyPrefix: ActionPasswordResetRequest.KeyPrefix(), Identity: IdentityIP},
		ActionPasswordResetConfirm: {MaxRequests: 5, Window: time.Hour, KeyPrefix: ActionPasswordResetConfirm.KeyPrefix(), Identity: IdentityIP},
		ActionContactRequest:       {MaxRequests: 10, Window: 24 * time.Hour, KeyPrefix: ActionContactRequest.KeyPrefix(), Identity: IdentityUserID},
		ActionImageUpload:          {MaxRequests: 50, Window: time.Hour, KeyPrefix: ActionImageUpload.KeyPrefix(), Identity: IdentityUserID},
		ActionAPIGeneral:           {MaxRequests: 100, Window: time.Minute, KeyPrefix: ActionAPIGeneral.KeyPrefix(), Identity: IdentityIP},
	}
}

// ParseRateLimitAction validates an action name
func ParseRateLimitAction(s string) (RateLimitAction, bool) {
	a := RateLimitAction(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := DefaultRateLimitRules()[a]
	return a, ok
}

// RateLimitKey identifies one counter by action and caller identity
type RateLimitKey struct {
	Action   RateLimitAction
	Identity string
}

// String renders the storage key. The identity is query-escaped, which is reversible,
// so distinct identities never share a bucket and ':' cannot reach another action's namespace.
func (k RateLimitKey) String() string {
	return k.Prefix() + sanitizeKeySegment(k.Identity)
}

// Prefix is the storage namespace shared by every identity of the action
func (k RateLimitKey) Prefix() string {
	return "ratelimit:" + k.Action.KeyPrefix() + ":"
}

func sanitizeKeySegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return url.QueryEscape(s)
}

// RateLimitCounter is the persisted state of one fixed window
type RateLimitCounter struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// Expired reports whether now is past the end of the window
func (c *RateLimitCounter) Expired(now time.Time) bool {
	return now.After(c.WindowResetAt)
}

// RateLimitResult represents the outcome of a rate limit check
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
