package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedAuditLogger() (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

func TestAuditLogger_LogContactEvent(t *testing.T) {
	al, buf := newBufferedAuditLogger()

	al.LogContactEvent(AuditEvent{
		EventType: EventContactRequestApproved,
		UserID:    "owner-1",
		RequestID: "req-1",
		Success:   true,
		Metadata:  map[string]string{"disclosure": "owner_to_requester"},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "contact", entry["audit_type"])
	assert.Equal(t, EventContactRequestApproved, entry["event_type"])
	assert.Equal(t, "owner-1", entry["user_id"])
	assert.Equal(t, "req-1", entry["contact_request_id"])
	assert.Equal(t, "owner_to_requester", entry["disclosure"])
	assert.NotContains(t, entry, "ip_address")
}

func TestAuditLogger_LogAbuseEvent(t *testing.T) {
	al, buf := newBufferedAuditLogger()

	al.LogAbuseEvent(AuditEvent{
		EventType:     EventSpamRejected,
		IPAddress:     "203.0.113.7",
		Success:       true,
		FailureReason: "honeypot",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "abuse", entry["audit_type"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, "honeypot", entry["failure_reason"])
}

func TestAuditLogger_NilIsNoop(t *testing.T) {
	var al *AuditLogger
	assert.NotPanics(t, func() {
		al.LogContactEvent(AuditEvent{EventType: EventContactRequestCreated})
	})
}

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"john@example.com", "j***@*******.com"},
		{"a@b.org", "a@*.org"},
		{"not-an-email", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizedEmail(tt.in))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.True(t, SanitizeQueryString("Email=x@y.z"))
	assert.False(t, SanitizeQueryString("role=owner&status=pending"))
}
