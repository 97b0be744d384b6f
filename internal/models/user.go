package models

import (
	"time"
)

// User is the read-only view of a catalog account that the contact workflow needs
type User struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	Status        string // "active", "suspended", "disabled"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive returns true unless the account is suspended or disabled
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == "active"
}

// ContactEmail returns the address notifications may use, or nil when unverified
func (u *User) ContactEmail() *string {
	if u.Email == "" || !u.EmailVerified {
		return nil
	}
	email := u.Email
	return &email
}
