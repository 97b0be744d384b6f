package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/medalroll/internal/auth"
	"github.com/BradenHooton/medalroll/internal/models"
	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	"github.com/BradenHooton/medalroll/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ContactWorkflow defines the contact request operations the handler exposes
type ContactWorkflow interface {
	ResolveRequester(ctx context.Context, userID string) (*models.Requester, error)
	Create(ctx context.Context, requester models.Requester, personID, message string) (*models.ContactRequest, error)
	Approve(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error)
	Decline(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error)
	Get(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error)
	ListForUser(ctx context.Context, userID string, role models.ContactRole, status *models.ContactRequestStatus) ([]*models.ContactRequest, error)
}

// SpamVerifier checks the anti-bot fields of a submission
type SpamVerifier interface {
	Verify(sub models.SpamSubmission) error
}

// QuotaReporter reads a rate limit window without consuming it
type QuotaReporter interface {
	Peek(ctx context.Context, identity string, action models.RateLimitAction) (*models.RateLimitResult, error)
}

// ContactHandler handles contact request HTTP requests
type ContactHandler struct {
	workflow ContactWorkflow
	spam     SpamVerifier
	quota    QuotaReporter
	audit    *logger.AuditLogger
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(
	workflow ContactWorkflow,
	spam SpamVerifier,
	quota QuotaReporter,
	auditLogger *logger.AuditLogger,
	ipConfig *pkghttp.IPConfig,
	log *slog.Logger,
) *ContactHandler {
	return &ContactHandler{
		workflow: workflow,
		spam:     spam,
		quota:    quota,
		audit:    auditLogger,
		ipConfig: ipConfig,
		logger:   log,
		now:      time.Now,
	}
}

// Request/Response DTOs

// CreateContactRequest is the body of POST /contact-requests.
// Website is a honeypot: it is hidden from people and only bots fill it in.
type CreateContactRequest struct {
	PersonID        string `json:"person_id" validate:"required"`
	Message         string `json:"message" validate:"required,max=10000"`
	ChallengeToken  string `json:"challenge_token" validate:"required"`
	ChallengeAnswer *int   `json:"challenge_answer" validate:"required"`
	Website         string `json:"website"`
}

// ContactRequestResponse represents a contact request in the HTTP response
type ContactRequestResponse struct {
	ID           string  `json:"id"`
	FromUserID   string  `json:"from_user_id"`
	FromUserName string  `json:"from_user_name"`
	ToUserID     string  `json:"to_user_id"`
	PersonID     string  `json:"person_id"`
	PersonName   string  `json:"person_name"`
	Message      string  `json:"message"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	DecidedAt    *string `json:"decided_at,omitempty"`
}

// ListContactRequestsResponse represents a list of contact requests
type ListContactRequestsResponse struct {
	ContactRequests []*ContactRequestResponse `json:"contact_requests"`
	Total           int                       `json:"total"`
}

// QuotaResponse reports the caller's remaining contact request quota
type QuotaResponse struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"reset_at"`
}

// acceptedResponse is returned to honeypot hits so bots see nothing different
type acceptedResponse struct {
	Message string `json:"message"`
}

func contactRequestToResponse(req *models.ContactRequest) *ContactRequestResponse {
	resp := &ContactRequestResponse{
		ID:           req.ID,
		FromUserID:   req.FromUserID,
		FromUserName: req.FromUserName,
		ToUserID:     req.ToUserID,
		PersonID:     req.PersonID,
		PersonName:   req.PersonName,
		Message:      req.Message,
		Status:       string(req.Status),
		CreatedAt:    req.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    req.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if req.DecidedAt != nil {
		decided := req.DecidedAt.UTC().Format(time.RFC3339)
		resp.DecidedAt = &decided
	}
	return resp
}

// RegisterRoutes registers contact routes. The router is expected to be behind auth.
func (h *ContactHandler) RegisterRoutes(router chi.Router) {
	router.Route("/contact-requests", func(r chi.Router) {
		r.Post("/", h.CreateContactRequest)             // POST /contact-requests
		r.Get("/", h.ListContactRequests)               // GET /contact-requests?role=&status=
		r.Get("/{id}", h.GetContactRequest)             // GET /contact-requests/{id}
		r.Put("/{id}/approve", h.ApproveContactRequest) // PUT /contact-requests/{id}/approve
		r.Put("/{id}/decline", h.DeclineContactRequest) // PUT /contact-requests/{id}/decline
	})
	router.Get("/rate-limits/contact", h.GetContactQuota)
}

// CreateContactRequest submits a request to contact the owner of a person record
//
// @Summary Create contact request
// @Accept json
// @Produce json
// @Success 201 {object} ContactRequestResponse
// @Failure 400,403,404,429,503 {object} ErrorResponse
// @Router /contact-requests [post]
func (h *ContactHandler) CreateContactRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromContext(r)
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	sub := models.SpamSubmission{ChallengeToken: req.ChallengeToken, Honeypot: req.Website}
	if req.ChallengeAnswer != nil {
		sub.Answer = *req.ChallengeAnswer
	}

	if err := h.spam.Verify(sub); err != nil {
		h.audit.LogAbuseEvent(logger.AuditEvent{
			EventType:     logger.EventSpamRejected,
			UserID:        userID,
			IPAddress:     pkghttp.ExtractClientIP(r, h.ipConfig),
			FailureReason: err.Error(),
		})
		if errors.Is(err, models.ErrSpamDetected) {
			pkghttp.WriteJSON(w, http.StatusAccepted, acceptedResponse{Message: "Your request has been received"})
			return
		}
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	if err := ValidateRequest(&req); err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	requester, err := h.workflow.ResolveRequester(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	created, err := h.workflow.Create(r.Context(), *requester, req.PersonID, req.Message)
	if err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, contactRequestToResponse(created))
}

// ListContactRequests lists requests the caller sent, received, or both
func (h *ContactHandler) ListContactRequests(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromContext(r)
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	role := models.ContactRole(r.URL.Query().Get("role"))
	var status *models.ContactRequestStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.ContactRequestStatus(s)
		status = &st
	}

	requests, err := h.workflow.ListForUser(r.Context(), userID, role, status)
	if err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	resp := &ListContactRequestsResponse{
		ContactRequests: make([]*ContactRequestResponse, 0, len(requests)),
		Total:           len(requests),
	}
	for _, req := range requests {
		resp.ContactRequests = append(resp.ContactRequests, contactRequestToResponse(req))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GetContactRequest returns one request to either participant
func (h *ContactHandler) GetContactRequest(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, h.workflow.Get)
}

// ApproveContactRequest records the owner's consent
func (h *ContactHandler) ApproveContactRequest(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, h.workflow.Approve)
}

// DeclineContactRequest records the owner's refusal
func (h *ContactHandler) DeclineContactRequest(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, h.workflow.Decline)
}

func (h *ContactHandler) withRequest(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, requestID, actingUserID string) (*models.ContactRequest, error),
) {
	userID := auth.GetUserIDFromContext(r)
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	requestID := chi.URLParam(r, "id")
	if requestID == "" {
		pkghttp.WriteBadRequest(w, "Contact request ID is required")
		return
	}

	req, err := op(r.Context(), requestID, userID)
	if err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, contactRequestToResponse(req))
}

// GetContactQuota reports how many contact requests the caller may still send in this window
func (h *ContactHandler) GetContactQuota(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromContext(r)
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.quota.Peek(r.Context(), userID, models.ActionContactRequest)
	if err != nil {
		writeServiceError(w, h.logger, h.now(), err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, QuotaResponse{
		Limit:     result.Limit,
		Remaining: result.Remaining,
		ResetAt:   result.ResetAt.UTC().Format(time.RFC3339),
	})
}
