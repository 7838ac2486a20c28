package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire-hq/backend/internal/models"
)

var (
	// ErrDuplicateName means another tenant already uses the name (case-insensitive).
	ErrDuplicateName = errors.New("tenant name already exists")
	// ErrDomainClaimed means another tenant already owns one of the domains.
	ErrDomainClaimed = errors.New("email domain already claimed by another tenant")
)

const pgUniqueViolation = "23505"

// Repository handles tenant and tenant domain persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func translateUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "tenants_name_lower_idx":
			return ErrDuplicateName
		case "tenant_domains_domain_key":
			return ErrDomainClaimed
		}
	}
	return err
}

// Create inserts a tenant with its domains in one transaction.
func (r *Repository) Create(ctx context.Context, t *models.Tenant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO tenants (id, name, logo_url, external_org_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, t.Name, t.LogoURL, t.ExternalOrgID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return translateUniqueErr(err)
	}
	if err := insertDomains(ctx, tx, t.ID, t.Domains); err != nil {
		return translateUniqueErr(err)
	}
	return tx.Commit(ctx)
}

func insertDomains(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, domains []string) error {
	for i, d := range domains {
		const q = `INSERT INTO tenant_domains (id, tenant_id, domain, ord) VALUES (gen_random_uuid(), $1, $2, $3)`
		if _, err := tx.Exec(ctx, q, tenantID, d, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) loadDomains(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT domain FROM tenant_domains WHERE tenant_id = $1 ORDER BY ord ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (r *Repository) scanTenant(ctx context.Context, row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.LogoURL, &t.ExternalOrgID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if t.Domains, err = r.loadDomains(ctx, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID returns a tenant by id with its domains, or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	const q = `SELECT id, name, logo_url, external_org_id, created_at, updated_at FROM tenants WHERE id = $1`
	return r.scanTenant(ctx, r.pool.QueryRow(ctx, q, id))
}

// GetByName returns a tenant by name (case-insensitive), or nil.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	const q = `SELECT id, name, logo_url, external_org_id, created_at, updated_at FROM tenants WHERE LOWER(name) = LOWER($1)`
	return r.scanTenant(ctx, r.pool.QueryRow(ctx, q, name))
}

// FindByDomain returns the tenant owning an email domain, or nil. Domain
// ownership is unique, so at most one tenant can match.
func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	const q = `SELECT t.id, t.name, t.logo_url, t.external_org_id, t.created_at, t.updated_at
		FROM tenants t
		INNER JOIN tenant_domains d ON d.tenant_id = t.id
		WHERE d.domain = $1`
	return r.scanTenant(ctx, r.pool.QueryRow(ctx, q, domain))
}

// List returns all tenants ordered by name.
func (r *Repository) List(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, logo_url, external_org_id, created_at, updated_at FROM tenants ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.LogoURL, &t.ExternalOrgID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range list {
		if t.Domains, err = r.loadDomains(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Update writes the tenant's mutable fields and replaces its domain set.
func (r *Repository) Update(ctx context.Context, t *models.Tenant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE tenants SET name = $2, logo_url = $3, external_org_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, q, t.ID, t.Name, t.LogoURL, t.ExternalOrgID).Scan(&t.UpdatedAt); err != nil {
		return translateUniqueErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tenant_domains WHERE tenant_id = $1`, t.ID); err != nil {
		return err
	}
	if err := insertDomains(ctx, tx, t.ID, t.Domains); err != nil {
		return translateUniqueErr(err)
	}
	return tx.Commit(ctx)
}

// UpdateLogo sets the tenant's logo URL.
func (r *Repository) UpdateLogo(ctx context.Context, id uuid.UUID, logoURL string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tenants SET logo_url = $2, updated_at = NOW() WHERE id = $1`, id, logoURL)
	return err
}

// Delete removes the tenant. Owned profiles, invitations, campaigns and their
// children go with it via FK cascade, so a partial delete is impossible.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
