package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/medalroll/internal/models"
)

// MockRateLimitCounterRepository implements RateLimitCounterRepository for testing
type MockRateLimitCounterRepository struct {
	GetFunc  func(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error)
	SaveFunc func(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error
}

func (m *MockRateLimitCounterRepository) Get(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockRateLimitCounterRepository) Save(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, key, counter, now)
	}
	return nil
}

// MockOwnerLookup implements OwnerLookup for testing
type MockOwnerLookup struct {
	GetOwnerFunc func(ctx context.Context, personID string) (*models.PersonOwner, error)
}

func (m *MockOwnerLookup) GetOwner(ctx context.Context, personID string) (*models.PersonOwner, error) {
	if m.GetOwnerFunc != nil {
		return m.GetOwnerFunc(ctx, personID)
	}
	return nil, models.ErrNotFound
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// MockRateLimiter implements ContactRateLimiter for testing
type MockRateLimiter struct {
	CheckAndConsumeFunc func(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error)
}

func (m *MockRateLimiter) CheckAndConsume(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error) {
	if m.CheckAndConsumeFunc != nil {
		return m.CheckAndConsumeFunc(ctx, identity, action)
	}
	return &models.RateLimitResult{Allowed: true, Limit: 10, Remaining: 9, ResetAt: time.Now().Add(24 * time.Hour)}, nil
}

// SentEmail is a message captured by MockMailer
type SentEmail struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// MockMailer implements Mailer and records every message
type MockMailer struct {
	SendEmailFunc func(ctx context.Context, to, subject, htmlBody, textBody string) error

	mu   sync.Mutex
	Sent []SentEmail
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentEmail{To: to, Subject: subject, HTMLBody: htmlBody, TextBody: textBody})
	m.mu.Unlock()

	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, to, subject, htmlBody, textBody)
	}
	return nil
}

// Messages returns a snapshot of the recorded messages
func (m *MockMailer) Messages() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.Sent...)
}

// DecisionCall is a NotifyDecision invocation captured by MockNotifier
type DecisionCall struct {
	Request    models.ContactRequest
	Disclosure models.Disclosure
}

// MockNotifier implements ContactNotifier and records calls
type MockNotifier struct {
	NotifyNewRequestFunc func(ctx context.Context, req *models.ContactRequest) error
	NotifyDecisionFunc   func(ctx context.Context, req *models.ContactRequest, disclosure models.Disclosure) error

	mu          sync.Mutex
	NewRequests []models.ContactRequest
	Decisions   []DecisionCall
}

func (m *MockNotifier) NotifyNewRequest(ctx context.Context, req *models.ContactRequest) error {
	m.mu.Lock()
	m.NewRequests = append(m.NewRequests, *req)
	m.mu.Unlock()

	if m.NotifyNewRequestFunc != nil {
		return m.NotifyNewRequestFunc(ctx, req)
	}
	return nil
}

func (m *MockNotifier) NotifyDecision(ctx context.Context, req *models.ContactRequest, disclosure models.Disclosure) error {
	m.mu.Lock()
	m.Decisions = append(m.Decisions, DecisionCall{Request: *req, Disclosure: disclosure})
	m.mu.Unlock()

	if m.NotifyDecisionFunc != nil {
		return m.NotifyDecisionFunc(ctx, req, disclosure)
	}
	return nil
}

// InlineQueue implements NotificationQueue by running jobs synchronously
type InlineQueue struct {
	mu     sync.Mutex
	Errors []error
}

func (q *InlineQueue) Dispatch(kind string, run func(ctx context.Context) error) bool {
	if err := run(context.Background()); err != nil {
		q.mu.Lock()
		q.Errors = append(q.Errors, err)
		q.mu.Unlock()
	}
	return true
}

// InMemoryContactRequestRepository implements ContactRequestRepository with the same
// conditional-update semantics as the PostgreSQL repository
type InMemoryContactRequestRepository struct {
	mu       sync.Mutex
	requests map[string]models.ContactRequest

	// CreateErr, when set, is returned by Create
	CreateErr error
}

func NewInMemoryContactRequestRepository() *InMemoryContactRequestRepository {
	return &InMemoryContactRequestRepository{requests: make(map[string]models.ContactRequest)}
}

func (r *InMemoryContactRequestRepository) Create(ctx context.Context, req *models.ContactRequest) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return models.ErrConflict
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *InMemoryContactRequestRepository) GetByID(ctx context.Context, id string) (*models.ContactRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &req, nil
}

func (r *InMemoryContactRequestRepository) UpdateStatus(ctx context.Context, id string, status models.ContactRequestStatus, decidedAt time.Time) (*models.ContactRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if req.Status != models.ContactStatusPending {
		return nil, models.ErrInvalidState
	}

	req.Status = status
	req.DecidedAt = &decidedAt
	req.UpdatedAt = decidedAt
	r.requests[id] = req

	return &req, nil
}

func (r *InMemoryContactRequestRepository) ListByUser(ctx context.Context, userID string, role models.ContactRole, status *models.ContactRequestStatus) ([]*models.ContactRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.ContactRequest, 0)
	for _, req := range r.requests {
		req := req
		switch role {
		case models.ContactRoleRequester:
			if req.FromUserID != userID {
				continue
			}
		case models.ContactRoleOwner:
			if req.ToUserID != userID {
				continue
			}
		default:
			if !req.IsParticipant(userID) {
				continue
			}
		}
		if status != nil && req.Status != *status {
			continue
		}
		out = append(out, &req)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Count returns the number of stored requests
func (r *InMemoryContactRequestRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
