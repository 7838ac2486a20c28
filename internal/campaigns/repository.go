package campaigns

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire-hq/backend/internal/models"
)

// ErrCodeTaken means the generated campaign code collided; retry with a new one.
var ErrCodeTaken = errors.New("campaigns: campaign code taken")

const campaignColumns = `id, tenant_id, name, description, status, type, tool_id, tool_name, tool_path,
	code, link, creator_id, start_date, end_date, created_at, updated_at`

// Repository handles campaign persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a campaigns repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var cp models.Campaign
	err := row.Scan(&cp.ID, &cp.TenantID, &cp.Name, &cp.Description, &cp.Status, &cp.Type,
		&cp.ToolID, &cp.ToolName, &cp.ToolPath, &cp.Code, &cp.Link, &cp.CreatorID,
		&cp.StartDate, &cp.EndDate, &cp.CreatedAt, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Create inserts a campaign. The caller retries with a fresh code on
// ErrCodeTaken.
func (r *Repository) Create(ctx context.Context, cp *models.Campaign) error {
	const q = `INSERT INTO campaigns (tenant_id, name, description, status, type, tool_id, tool_name, tool_path, code, link, creator_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, cp.TenantID, cp.Name, cp.Description, cp.Status, cp.Type,
		cp.ToolID, cp.ToolName, cp.ToolPath, cp.Code, cp.Link, cp.CreatorID, cp.StartDate, cp.EndDate).
		Scan(&cp.ID, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "campaigns_code_key" {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

// GetByID returns a campaign or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	q := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1`, campaignColumns)
	return scanCampaign(r.pool.QueryRow(ctx, q, id))
}

// GetByCode returns the campaign holding the access code, or nil.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Campaign, error) {
	q := fmt.Sprintf(`SELECT %s FROM campaigns WHERE code = $1`, campaignColumns)
	return scanCampaign(r.pool.QueryRow(ctx, q, code))
}

// ListByTenant returns a tenant's campaigns, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Campaign, error) {
	q := fmt.Sprintf(`SELECT %s FROM campaigns WHERE tenant_id = $1 ORDER BY created_at DESC`, campaignColumns)
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Campaign
	for rows.Next() {
		var cp models.Campaign
		if err := rows.Scan(&cp.ID, &cp.TenantID, &cp.Name, &cp.Description, &cp.Status, &cp.Type,
			&cp.ToolID, &cp.ToolName, &cp.ToolPath, &cp.Code, &cp.Link, &cp.CreatorID,
			&cp.StartDate, &cp.EndDate, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &cp)
	}
	return list, rows.Err()
}

// UpdateStatus sets the campaign lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AddParticipant registers an email on a campaign. Re-registering the same
// email is a silent no-op.
func (r *Repository) AddParticipant(ctx context.Context, campaignID uuid.UUID, email string) error {
	const q = `INSERT INTO campaign_participants (campaign_id, email)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id, email) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, campaignID, email)
	return err
}

// ListParticipants returns a campaign's participants in join order.
func (r *Repository) ListParticipants(ctx context.Context, campaignID uuid.UUID) ([]*models.CampaignParticipant, error) {
	const q = `SELECT id, campaign_id, email, joined_at
		FROM campaign_participants WHERE campaign_id = $1 ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CampaignParticipant
	for rows.Next() {
		var p models.CampaignParticipant
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.Email, &p.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Stats derives participation counts. Progress comes from the invitations
// linked to the campaign by foreign key; the recipient-less anchor invitation
// is excluded.
func (r *Repository) Stats(ctx context.Context, campaignID uuid.UUID) (*models.CampaignStats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM campaign_participants WHERE campaign_id = $1),
		COUNT(*) FILTER (WHERE sent_at IS NOT NULL),
		COUNT(*) FILTER (WHERE status = 'COMPLETED')
		FROM invitations WHERE campaign_id = $1 AND email <> ''`
	var s models.CampaignStats
	if err := r.pool.QueryRow(ctx, q, campaignID).Scan(&s.Total, &s.Sent, &s.Completed); err != nil {
		return nil, err
	}
	s.CompletionRate = CompletionRate(s.Completed, s.Total)
	return &s, nil
}

// CompletionRate returns completed/total as a whole percentage, rounded half
// up. Zero participants yields zero, not a division error.
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Delete removes a campaign within its tenant scope. Linked invitations keep
// their rows with campaign_id cleared.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
