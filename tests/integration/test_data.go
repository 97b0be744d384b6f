//go:build integration

package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/medalroll/internal/models"
)

// SeedUser inserts a collector account
func SeedUser(ctx context.Context, pool *pgxpool.Pool, name string, verified bool, status string) (*models.User, error) {
	email := fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano())

	var user models.User
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, name, email_verified, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, name, email_verified, status, created_at, updated_at
	`, email, name, verified, status).Scan(
		&user.ID, &user.Email, &user.Name, &user.EmailVerified, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

// SeedPerson inserts a cataloged person record owned by ownerID
func SeedPerson(ctx context.Context, pool *pgxpool.Pool, ownerID, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx,
		`INSERT INTO persons (owner_id, name) VALUES ($1, $2) RETURNING id`,
		ownerID, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert person: %w", err)
	}
	return id, nil
}
