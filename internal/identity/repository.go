package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire-hq/backend/internal/models"
)

const profileColumns = `id, external_id, email, first_name, last_name, role, department, onboarding_complete, tenant_id, created_at, updated_at`

// Repository handles user profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user profile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(&p.ID, &p.ExternalID, &p.Email, &p.FirstName, &p.LastName, &p.Role,
		&p.Department, &p.OnboardingComplete, &p.TenantID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetByExternalID returns the profile claimed by the given provider user id, or nil.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.UserProfile, error) {
	const q = `SELECT ` + profileColumns + ` FROM user_profiles WHERE external_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, q, externalID))
}

// GetByEmail returns the profile for an email, or nil.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	const q = `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`
	return scanProfile(r.pool.QueryRow(ctx, q, email))
}

// Create inserts a new profile.
func (r *Repository) Create(ctx context.Context, p *models.UserProfile) error {
	const q = `INSERT INTO user_profiles (id, external_id, email, first_name, last_name, role, department, tenant_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, onboarding_complete, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.ExternalID, p.Email, p.FirstName, p.LastName, p.Role, p.Department, p.TenantID).
		Scan(&p.ID, &p.OnboardingComplete, &p.CreatedAt, &p.UpdatedAt)
}

// ClaimByEmail upserts a profile keyed on email and claims it for the
// external id, keeping existing names when the provider sends empty ones and
// an existing claim when no external id is supplied. Used by campaign
// registration, where the invitee may pre-exist unclaimed.
func (r *Repository) ClaimByEmail(ctx context.Context, p *models.UserProfile) error {
	const q = `INSERT INTO user_profiles (id, external_id, email, first_name, last_name, tenant_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			external_id = COALESCE(EXCLUDED.external_id, user_profiles.external_id),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), user_profiles.first_name),
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), user_profiles.last_name),
			tenant_id = COALESCE(EXCLUDED.tenant_id, user_profiles.tenant_id),
			updated_at = NOW()
		RETURNING id, role, department, onboarding_complete, tenant_id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.ExternalID, p.Email, p.FirstName, p.LastName, p.TenantID).
		Scan(&p.ID, &p.Role, &p.Department, &p.OnboardingComplete, &p.TenantID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProfile writes the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	const q = `UPDATE user_profiles
		SET first_name = $2, last_name = $3, role = $4, department = $5, onboarding_complete = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.FirstName, p.LastName, p.Role, p.Department, p.OnboardingComplete).
		Scan(&p.UpdatedAt)
}

// UpdateTenant sets the profile's owning tenant.
func (r *Repository) UpdateTenant(ctx context.Context, profileID, tenantID uuid.UUID) error {
	const q = `UPDATE user_profiles SET tenant_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, profileID, tenantID)
	return err
}

// ListByTenant returns all profiles owned by a tenant.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.UserProfile, error) {
	const q = `SELECT ` + profileColumns + ` FROM user_profiles WHERE tenant_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Email, &p.FirstName, &p.LastName, &p.Role,
			&p.Department, &p.OnboardingComplete, &p.TenantID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
