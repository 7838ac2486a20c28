package leads

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire-hq/backend/internal/models"
)

// Repository handles lead persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a leads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a lead.
func (r *Repository) Create(ctx context.Context, lead *models.Lead) error {
	const q = `INSERT INTO leads (email, name, source, tool_id, tool_name, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, lead.Email, lead.Name, lead.Source, lead.ToolID, lead.ToolName, lead.Metadata).
		Scan(&lead.ID, &lead.CreatedAt)
}

// List returns all leads, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Lead, error) {
	const q = `SELECT id, email, name, source, tool_id, tool_name, metadata, created_at
		FROM leads ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.Email, &l.Name, &l.Source, &l.ToolID, &l.ToolName, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
