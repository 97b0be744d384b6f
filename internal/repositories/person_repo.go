package repositories

import (
	"context"

	"github.com/BradenHooton/medalroll/internal/database"
	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PersonRepository resolves record ownership from the catalog's persons table
type PersonRepository struct {
	pool *pgxpool.Pool
}

func NewPersonRepository(db *database.DB) *PersonRepository {
	return &PersonRepository{pool: db.Pool}
}

// GetOwner returns models.ErrNotFound for unknown ids
func (r *PersonRepository) GetOwner(ctx context.Context, personID string) (*models.PersonOwner, error) {
	query := `SELECT id, name, owner_id FROM persons WHERE id = $1`

	var owner models.PersonOwner
	err := r.pool.QueryRow(ctx, query, personID).Scan(&owner.PersonID, &owner.PersonName, &owner.OwnerID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &owner, nil
}
