package models

import (
	"errors"
	"testing"
)

func TestContactRequestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     ContactRequestStatus
		to       ContactRequestStatus
		expected bool
	}{
		{ContactStatusPending, ContactStatusApproved, true},
		{ContactStatusPending, ContactStatusDeclined, true},
		{ContactStatusPending, ContactStatusPending, false},
		{ContactStatusApproved, ContactStatusDeclined, false},
		{ContactStatusApproved, ContactStatusPending, false},
		{ContactStatusDeclined, ContactStatusApproved, false},
		{ContactStatusDeclined, ContactStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestContactRequest_IsParticipant(t *testing.T) {
	req := &ContactRequest{FromUserID: "u1", ToUserID: "u2"}

	if !req.IsParticipant("u1") || !req.IsParticipant("u2") {
		t.Error("requester and owner should be participants")
	}
	if req.IsParticipant("u3") || req.IsParticipant("") {
		t.Error("others should not be participants")
	}
}

func TestDisclosure_IsValid(t *testing.T) {
	for _, d := range []Disclosure{DisclosureNone, DisclosureOwnerToRequester, DisclosureRequesterToOwner} {
		if !d.IsValid() {
			t.Errorf("%q should be valid", d)
		}
	}
	if Disclosure("both").IsValid() {
		t.Error("unknown disclosure should be invalid")
	}
}

func TestErrorMatching(t *testing.T) {
	var err error = &ValidationError{Field: "message", Message: "too short"}
	if !errors.Is(err, ErrBadRequest) {
		t.Error("ValidationError should match ErrBadRequest")
	}

	cause := errors.New("connection refused")
	err = &StorageError{Op: "create_contact_request", Retryable: true, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("StorageError should unwrap to its cause")
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) || !storageErr.Retryable {
		t.Error("errors.As should find a retryable StorageError")
	}
}

func TestUser_ContactEmail(t *testing.T) {
	verified := &User{Email: "a@example.com", EmailVerified: true}
	if got := verified.ContactEmail(); got == nil || *got != "a@example.com" {
		t.Errorf("ContactEmail() = %v", got)
	}

	unverified := &User{Email: "a@example.com"}
	if unverified.ContactEmail() != nil {
		t.Error("unverified email should not be disclosed")
	}
}
