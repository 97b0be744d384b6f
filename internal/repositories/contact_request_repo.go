package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/medalroll/internal/database"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactRequestRepository persists contact requests in PostgreSQL
type ContactRequestRepository struct {
	pool *pgxpool.Pool
}

func NewContactRequestRepository(db *database.DB) *ContactRequestRepository {
	return &ContactRequestRepository{pool: db.Pool}
}

// The requester email is only exposed once verified
const contactRequestColumns = `
	cr.id, cr.from_user_id, cr.from_user_name,
	CASE WHEN u.email_verified THEN u.email END,
	cr.to_user_id, cr.person_id, cr.person_name, cr.message, cr.status,
	cr.created_at, cr.updated_at, cr.decided_at
`

func scanContactRequestRow(scanner rowScanner) (*models.ContactRequest, error) {
	var req models.ContactRequest
	var status string

	err := scanner.Scan(
		&req.ID, &req.FromUserID, &req.FromUserName,
		&req.FromUserEmail,
		&req.ToUserID, &req.PersonID, &req.PersonName, &req.Message, &status,
		&req.CreatedAt, &req.UpdatedAt, &req.DecidedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	req.Status = models.ContactRequestStatus(status)

	return &req, nil
}

func scanContactRequestRows(rows pgx.Rows) ([]*models.ContactRequest, error) {
	defer rows.Close()

	requests := make([]*models.ContactRequest, 0)

	for rows.Next() {
		req, err := scanContactRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return requests, nil
}

// Create inserts a new request. ID and timestamps must already be set by the caller.
func (r *ContactRequestRepository) Create(ctx context.Context, req *models.ContactRequest) error {
	query := `
		INSERT INTO contact_requests (id, from_user_id, from_user_name, to_user_id, person_id, person_name, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.FromUserID, req.FromUserName, req.ToUserID,
		req.PersonID, req.PersonName, req.Message, string(req.Status),
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact request: %w", database.MapPostgresError(err))
	}

	return nil
}

func (r *ContactRequestRepository) GetByID(ctx context.Context, id string) (*models.ContactRequest, error) {
	query := `
		SELECT ` + contactRequestColumns + `
		FROM contact_requests cr
		LEFT JOIN users u ON u.id = cr.from_user_id
		WHERE cr.id = $1
	`

	return scanContactRequestRow(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus moves a pending request to a terminal status. The WHERE clause on the current
// status makes concurrent decisions race-safe: the loser sees models.ErrInvalidState.
func (r *ContactRequestRepository) UpdateStatus(ctx context.Context, id string, status models.ContactRequestStatus, decidedAt time.Time) (*models.ContactRequest, error) {
	query := `
		WITH cr AS (
			UPDATE contact_requests
			SET status = $2, decided_at = $3, updated_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING *
		)
		SELECT ` + contactRequestColumns + `
		FROM cr
		LEFT JOIN users u ON u.id = cr.from_user_id
	`

	req, err := scanContactRequestRow(r.pool.QueryRow(ctx, query, id, string(status), decidedAt))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to update contact request: %w", err)
	}

	// No row updated: either it does not exist or it was already decided
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrInvalidState
}

// ListByUser returns requests where the user is requester, owner or either, newest first
func (r *ContactRequestRepository) ListByUser(ctx context.Context, userID string, role models.ContactRole, status *models.ContactRequestStatus) ([]*models.ContactRequest, error) {
	conditions := make([]string, 0, 2)
	args := []interface{}{userID}

	switch role {
	case models.ContactRoleRequester:
		conditions = append(conditions, "cr.from_user_id = $1")
	case models.ContactRoleOwner:
		conditions = append(conditions, "cr.to_user_id = $1")
	default:
		conditions = append(conditions, "(cr.from_user_id = $1 OR cr.to_user_id = $1)")
	}

	if status != nil {
		args = append(args, string(*status))
		conditions = append(conditions, fmt.Sprintf("cr.status = $%d", len(args)))
	}

	query := `
		SELECT ` + contactRequestColumns + `
		FROM contact_requests cr
		LEFT JOIN users u ON u.id = cr.from_user_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY cr.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact requests: %w", err)
	}

	return scanContactRequestRows(rows)
}
