package models

import "time"

// ContactRequestStatus is the consent state of a contact request
type ContactRequestStatus string

const (
	ContactStatusPending  ContactRequestStatus = "pending"
	ContactStatusApproved ContactRequestStatus = "approved"
	ContactStatusDeclined ContactRequestStatus = "declined"
)

// IsValid checks the status is one of the supported values
func (s ContactRequestStatus) IsValid() bool {
	switch s {
	case ContactStatusPending, ContactStatusApproved, ContactStatusDeclined:
		return true
	}
	return false
}

// IsTerminal returns true once the owner has decided
func (s ContactRequestStatus) IsTerminal() bool {
	return s == ContactStatusApproved || s == ContactStatusDeclined
}

// CanTransitionTo allows only pending -> approved and pending -> declined
func (s ContactRequestStatus) CanTransitionTo(next ContactRequestStatus) bool {
	return s == ContactStatusPending && next.IsTerminal()
}

// ContactRole selects which side of a contact request a listing is for
type ContactRole string

const (
	ContactRoleRequester ContactRole = "requester"
	ContactRoleOwner     ContactRole = "owner"
	ContactRoleAll       ContactRole = "all"
)

// Message length bounds, counted in runes after sanitization
const (
	MinContactMessageLength = 10
	MaxContactMessageLength = 1000
)

// ContactRequest asks the owner of a person record (ToUserID) for an introduction.
// It is written by the requester once and decided by the owner once.
type ContactRequest struct {
	ID            string               `json:"id"`
	FromUserID    string               `json:"from_user_id"`
	FromUserName  string               `json:"from_user_name"`
	FromUserEmail *string              `json:"-"` // disclosed only through notifications
	ToUserID      string               `json:"to_user_id"`
	PersonID      string               `json:"person_id"`
	PersonName    string               `json:"person_name"`
	Message       string               `json:"message"`
	Status        ContactRequestStatus `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	DecidedAt     *time.Time           `json:"decided_at,omitempty"`
}

// IsParticipant returns true for the requester and the owner
func (c *ContactRequest) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.FromUserID || userID == c.ToUserID)
}

// Requester is the authenticated user initiating contact
type Requester struct {
	ID    string
	Name  string
	Email *string
}

// Disclosure names whose contact details an approval reveals, and to whom
type Disclosure string

const (
	DisclosureNone             Disclosure = "none"
	DisclosureOwnerToRequester Disclosure = "owner_to_requester"
	DisclosureRequesterToOwner Disclosure = "requester_to_owner"
)

// IsValid checks the disclosure is one of the supported values
func (d Disclosure) IsValid() bool {
	switch d {
	case DisclosureNone, DisclosureOwnerToRequester, DisclosureRequesterToOwner:
		return true
	}
	return false
}
