package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types for the contact workflow
const (
	EventContactRequestCreated  = "contact_request_created"
	EventContactRequestApproved = "contact_request_approved"
	EventContactRequestDeclined = "contact_request_declined"
	EventSpamRejected           = "spam_rejected"
	EventRateLimited            = "rate_limited"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	RequestID     string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogContactEvent logs a state change of a contact request
func (al *AuditLogger) LogContactEvent(event AuditEvent) {
	al.log("contact", event)
}

// LogAbuseEvent logs spam rejections and throttled requests
func (al *AuditLogger) LogAbuseEvent(event AuditEvent) {
	event.Success = false
	al.log("abuse", event)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("contact_request_id", event.RequestID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}
