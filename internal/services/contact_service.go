package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/BradenHooton/medalroll/internal/metrics"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/BradenHooton/medalroll/pkg/logger"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// ContactRequestRepository defines the persistence operations for contact requests
type ContactRequestRepository interface {
	Create(ctx context.Context, req *models.ContactRequest) error
	GetByID(ctx context.Context, id string) (*models.ContactRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.ContactRequestStatus, decidedAt time.Time) (*models.ContactRequest, error)
	ListByUser(ctx context.Context, userID string, role models.ContactRole, status *models.ContactRequestStatus) ([]*models.ContactRequest, error)
}

// OwnerLookup resolves which user owns a cataloged person record
type OwnerLookup interface {
	GetOwner(ctx context.Context, personID string) (*models.PersonOwner, error)
}

// ContactRateLimiter is the part of RateLimitService the workflow consumes
type ContactRateLimiter interface {
	CheckAndConsume(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error)
}

// ContactNotifier delivers workflow notifications
type ContactNotifier interface {
	NotifyNewRequest(ctx context.Context, req *models.ContactRequest) error
	NotifyDecision(ctx context.Context, req *models.ContactRequest, disclosure models.Disclosure) error
}

// NotificationQueue runs notification work off the request path
type NotificationQueue interface {
	Dispatch(kind string, run func(ctx context.Context) error) bool
}

// ContactServiceConfig holds workflow policy
type ContactServiceConfig struct {
	Disclosure   models.Disclosure // revealed on approval
	StoreTimeout time.Duration
}

// ContactService implements the consent-gated contact workflow
type ContactService struct {
	repo     ContactRequestRepository
	owners   OwnerLookup
	users    UserDirectory
	limiter  ContactRateLimiter
	notifier ContactNotifier
	queue    NotificationQueue
	config   ContactServiceConfig
	audit    *logger.AuditLogger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	policy   *bluemonday.Policy
}

// NewContactService creates a new ContactService
func NewContactService(
	repo ContactRequestRepository,
	owners OwnerLookup,
	users UserDirectory,
	limiter ContactRateLimiter,
	notifier ContactNotifier,
	queue NotificationQueue,
	config ContactServiceConfig,
	auditLogger *logger.AuditLogger,
	m *metrics.Metrics,
	log *slog.Logger,
) *ContactService {
	if !config.Disclosure.IsValid() {
		config.Disclosure = models.DisclosureOwnerToRequester
	}
	return &ContactService{
		repo:     repo,
		owners:   owners,
		users:    users,
		limiter:  limiter,
		notifier: notifier,
		queue:    queue,
		config:   config,
		audit:    auditLogger,
		metrics:  m,
		logger:   log,
		now:      time.Now,
		policy:   bluemonday.StrictPolicy(),
	}
}

// SetClock overrides the time source, for tests
func (s *ContactService) SetClock(now func() time.Time) {
	s.now = now
}

// ResolveRequester loads the acting user's display name and optional email
func (s *ContactService) ResolveRequester(ctx context.Context, userID string) (*models.Requester, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, &models.StorageError{Op: "get_user", Retryable: true, Err: err}
	}

	if !user.IsActive() {
		return nil, models.ErrForbidden
	}

	return &models.Requester{ID: user.ID, Name: user.Name, Email: user.ContactEmail()}, nil
}

// Create records a pending request from requester to the owner of personID.
// Checks run in order: owner lookup, self-contact, message, rate limit.
func (s *ContactService) Create(ctx context.Context, requester models.Requester, personID, message string) (*models.ContactRequest, error) {
	owner, err := s.lookupOwner(ctx, personID)
	if err != nil {
		return nil, err
	}

	if requester.ID == owner.OwnerID {
		return nil, models.ErrSelfContact
	}

	cleaned, err := s.sanitizeMessage(message)
	if err != nil {
		return nil, err
	}

	result, err := s.limiter.CheckAndConsume(ctx, requester.ID, models.ActionContactRequest)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		s.audit.LogAbuseEvent(logger.AuditEvent{
			EventType: logger.EventRateLimited,
			UserID:    requester.ID,
			Metadata:  map[string]string{"action": string(models.ActionContactRequest)},
		})
		return nil, &models.RateLimitExceededError{
			Action:    models.ActionContactRequest,
			Limit:     result.Limit,
			Remaining: result.Remaining,
			ResetAt:   result.ResetAt,
		}
	}

	now := s.now()
	req := &models.ContactRequest{
		ID:            uuid.New().String(),
		FromUserID:    requester.ID,
		FromUserName:  requester.Name,
		FromUserEmail: requester.Email,
		ToUserID:      owner.OwnerID,
		PersonID:      owner.PersonID,
		PersonName:    owner.PersonName,
		Message:       cleaned,
		Status:        models.ContactStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.repo.Create(storeCtx, req); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to persist contact request",
			slog.String("from_user_id", req.FromUserID),
			slog.String("person_id", req.PersonID),
			slog.Any("error", err))
		return nil, &models.StorageError{Op: "create_contact_request", Retryable: true, Err: err}
	}

	s.metrics.IncrementContactEvent("created")
	s.audit.LogContactEvent(logger.AuditEvent{
		EventType: logger.EventContactRequestCreated,
		UserID:    req.FromUserID,
		RequestID: req.ID,
		Success:   true,
		Metadata:  map[string]string{"person_id": req.PersonID, "to_user_id": req.ToUserID},
	})

	alert := *req
	s.queue.Dispatch("owner_alert", func(ctx context.Context) error {
		return s.notifier.NotifyNewRequest(ctx, &alert)
	})

	return req, nil
}

// Approve records the owner's consent and notifies with the configured disclosure
func (s *ContactService) Approve(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error) {
	return s.decide(ctx, requestID, actingUserID, models.ContactStatusApproved, s.config.Disclosure)
}

// Decline records the owner's refusal. Nothing is disclosed.
func (s *ContactService) Decline(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error) {
	return s.decide(ctx, requestID, actingUserID, models.ContactStatusDeclined, models.DisclosureNone)
}

func (s *ContactService) decide(
	ctx context.Context,
	requestID, actingUserID string,
	status models.ContactRequestStatus,
	disclosure models.Disclosure,
) (*models.ContactRequest, error) {
	current, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if current.ToUserID != actingUserID {
		return nil, models.ErrForbidden
	}

	if !current.Status.CanTransitionTo(status) {
		return nil, models.ErrInvalidState
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	updated, err := s.repo.UpdateStatus(storeCtx, requestID, status, s.now())
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) || errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, &models.StorageError{Op: "update_contact_request", Retryable: true, Err: err}
	}

	event := logger.EventContactRequestApproved
	if status == models.ContactStatusDeclined {
		event = logger.EventContactRequestDeclined
	}
	s.metrics.IncrementContactEvent(string(status))
	s.audit.LogContactEvent(logger.AuditEvent{
		EventType: event,
		UserID:    actingUserID,
		RequestID: updated.ID,
		Success:   true,
		Metadata:  map[string]string{"disclosure": string(disclosure)},
	})

	decided := *updated
	s.queue.Dispatch("decision", func(ctx context.Context) error {
		return s.notifier.NotifyDecision(ctx, &decided, disclosure)
	})

	return updated, nil
}

// Get returns a request visible to one of its participants
func (s *ContactService) Get(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error) {
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !req.IsParticipant(actingUserID) {
		return nil, models.ErrForbidden
	}

	return req, nil
}

// ListForUser returns the user's requests, newest first. An empty role means all.
func (s *ContactService) ListForUser(ctx context.Context, userID string, role models.ContactRole, status *models.ContactRequestStatus) ([]*models.ContactRequest, error) {
	switch role {
	case "":
		role = models.ContactRoleAll
	case models.ContactRoleRequester, models.ContactRoleOwner, models.ContactRoleAll:
	default:
		return nil, &models.ValidationError{Field: "role", Message: "must be requester, owner or all"}
	}

	if status != nil && !status.IsValid() {
		return nil, &models.ValidationError{Field: "status", Message: "must be pending, approved or declined"}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	requests, err := s.repo.ListByUser(storeCtx, userID, role, status)
	if err != nil {
		return nil, &models.StorageError{Op: "list_contact_requests", Retryable: true, Err: err}
	}

	return requests, nil
}

func (s *ContactService) get(ctx context.Context, requestID string) (*models.ContactRequest, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, models.ErrNotFound
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	req, err := s.repo.GetByID(storeCtx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, &models.StorageError{Op: "get_contact_request", Retryable: true, Err: err}
	}

	return req, nil
}

func (s *ContactService) lookupOwner(ctx context.Context, personID string) (*models.PersonOwner, error) {
	if _, err := uuid.Parse(personID); err != nil {
		return nil, fmt.Errorf("person %q: %w", personID, models.ErrNotFound)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	owner, err := s.owners.GetOwner(storeCtx, personID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("person %q: %w", personID, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "lookup_owner", Retryable: true, Err: err}
	}

	return owner, nil
}

func (s *ContactService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// sanitizeMessage strips markup and control characters, trims surrounding whitespace
// and enforces the length bounds in runes
func (s *ContactService) sanitizeMessage(message string) (string, error) {
	cleaned := SanitizeMessage(s.policy, message)

	n := utf8.RuneCountInString(cleaned)
	if n < models.MinContactMessageLength {
		return "", &models.ValidationError{
			Field:   "message",
			Message: fmt.Sprintf("must be at least %d characters", models.MinContactMessageLength),
		}
	}
	if n > models.MaxContactMessageLength {
		return "", &models.ValidationError{
			Field:   "message",
			Message: fmt.Sprintf("must be at most %d characters", models.MaxContactMessageLength),
		}
	}

	return cleaned, nil
}

// maxSanitizePasses bounds the strip/decode loop for nested entity encodings
const maxSanitizePasses = 8

// SanitizeMessage reduces user text to plain characters. Newlines and tabs survive.
// Markup is stripped and entities decoded repeatedly until the text no longer changes,
// so entity-encoded tags cannot come back as live markup.
func SanitizeMessage(policy *bluemonday.Policy, message string) string {
	stripped := message
	stable := false
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(policy.Sanitize(stripped))
		if next == stripped {
			stable = true
			break
		}
		stripped = next
	}
	if !stable {
		stripped = strings.NewReplacer("<", "", ">", "").Replace(stripped)
	}

	stripped = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' || unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, stripped)

	return strings.TrimSpace(stripped)
}
