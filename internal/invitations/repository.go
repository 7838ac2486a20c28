package invitations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire-hq/backend/internal/models"
)

var (
	// ErrDuplicateEmail means the tenant already invited this recipient.
	ErrDuplicateEmail = errors.New("invitations: recipient already invited")
	// ErrCodeTaken means the generated invite code collided; retry with a new one.
	ErrCodeTaken = errors.New("invitations: invite code taken")
)

const invitationColumns = `id, tenant_id, campaign_id, email, name, invite_code, invite_url,
	status, message, current_stage, sent_at, opened_at, started_at, completed_at, resent_at,
	created_at, updated_at`

// Repository handles invitation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invitations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.CampaignID, &inv.Email, &inv.Name,
		&inv.InviteCode, &inv.InviteURL, &inv.Status, &inv.Message, &inv.CurrentStage,
		&inv.SentAt, &inv.OpenedAt, &inv.StartedAt, &inv.CompletedAt, &inv.ResentAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func translateUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "invitations_tenant_email_idx":
			return ErrDuplicateEmail
		case "invitations_invite_code_key":
			return ErrCodeTaken
		}
	}
	return err
}

// Create inserts an invitation. The caller retries with a fresh code on
// ErrCodeTaken.
func (r *Repository) Create(ctx context.Context, inv *models.Invitation) error {
	const q = `INSERT INTO invitations (tenant_id, campaign_id, email, name, invite_code, invite_url, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, inv.TenantID, inv.CampaignID, inv.Email, inv.Name,
		inv.InviteCode, inv.InviteURL, inv.Status, inv.Message).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return translateUniqueErr(err)
	}
	return nil
}

// GetByID returns an invitation or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	q := fmt.Sprintf(`SELECT %s FROM invitations WHERE id = $1`, invitationColumns)
	return scanInvitation(r.pool.QueryRow(ctx, q, id))
}

// GetByCode returns the invitation holding the invite code, or nil.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Invitation, error) {
	q := fmt.Sprintf(`SELECT %s FROM invitations WHERE invite_code = $1`, invitationColumns)
	return scanInvitation(r.pool.QueryRow(ctx, q, code))
}

// GetByTenantEmail returns the tenant's invitation for a recipient, or nil.
func (r *Repository) GetByTenantEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Invitation, error) {
	q := fmt.Sprintf(`SELECT %s FROM invitations WHERE tenant_id = $1 AND email = $2`, invitationColumns)
	return scanInvitation(r.pool.QueryRow(ctx, q, tenantID, email))
}

// ListByTenant returns all invitations for a tenant, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Invitation, error) {
	q := fmt.Sprintf(`SELECT %s FROM invitations WHERE tenant_id = $1 ORDER BY created_at DESC`, invitationColumns)
	return r.list(ctx, q, tenantID)
}

// ListByCampaign returns a campaign's invitations, newest first.
func (r *Repository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Invitation, error) {
	q := fmt.Sprintf(`SELECT %s FROM invitations WHERE campaign_id = $1 ORDER BY created_at DESC`, invitationColumns)
	return r.list(ctx, q, campaignID)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]*models.Invitation, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.CampaignID, &inv.Email, &inv.Name,
			&inv.InviteCode, &inv.InviteURL, &inv.Status, &inv.Message, &inv.CurrentStage,
			&inv.SentAt, &inv.OpenedAt, &inv.StartedAt, &inv.CompletedAt, &inv.ResentAt,
			&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &inv)
	}
	return list, rows.Err()
}

// MarkSent moves a PENDING invitation to SENT. Safe to call again after a
// failed dispatch; a no-op once the recipient has progressed further.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE invitations
		SET status = $2, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3`
	_, err := r.pool.Exec(ctx, q, id, models.InvitationSent, models.InvitationPending)
	return err
}

// MarkResent stamps resent_at without touching the lifecycle status.
func (r *Repository) MarkResent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE invitations SET resent_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Advance moves the invitation from its current status to target, stamping the
// matching timestamp. The status guard makes the update a compare-and-swap: a
// concurrent advance wins and this call reports changed=false.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, from, target models.InvitationStatus) (bool, error) {
	var col string
	switch target {
	case models.InvitationSent:
		col = "sent_at"
	case models.InvitationOpened:
		col = "opened_at"
	case models.InvitationStarted:
		col = "started_at"
	case models.InvitationCompleted:
		col = "completed_at"
	default:
		return false, fmt.Errorf("cannot advance to status %q", target)
	}
	q := fmt.Sprintf(`UPDATE invitations
		SET status = $2, %s = COALESCE(%s, NOW()), updated_at = NOW()
		WHERE id = $1 AND status = $3`, col, col)
	tag, err := r.pool.Exec(ctx, q, id, target, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AttachCampaign links an existing invitation to a campaign.
func (r *Repository) AttachCampaign(ctx context.Context, id, campaignID uuid.UUID) error {
	const q = `UPDATE invitations SET campaign_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, campaignID)
	return err
}

// UpdateStage records the invitee's current position in the assessment flow.
func (r *Repository) UpdateStage(ctx context.Context, id uuid.UUID, stage string) error {
	const q = `UPDATE invitations SET current_stage = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, stage)
	return err
}

// GetMetadata returns the invitation's metadata row, or nil.
func (r *Repository) GetMetadata(ctx context.Context, invitationID uuid.UUID) (*models.InvitationMetadata, error) {
	const q = `SELECT invitation_id, role, challenges, tools_accessed, generic_link, updated_at
		FROM invitation_metadata WHERE invitation_id = $1`
	var md models.InvitationMetadata
	err := r.pool.QueryRow(ctx, q, invitationID).
		Scan(&md.InvitationID, &md.Role, &md.Challenges, &md.ToolsAccessed, &md.GenericLink, &md.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// UpsertMetadata writes the invitation's metadata row, replacing prior values.
func (r *Repository) UpsertMetadata(ctx context.Context, md *models.InvitationMetadata) error {
	const q = `INSERT INTO invitation_metadata (invitation_id, role, challenges, tools_accessed, generic_link, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (invitation_id) DO UPDATE
		SET role = EXCLUDED.role, challenges = EXCLUDED.challenges,
			tools_accessed = EXCLUDED.tools_accessed, generic_link = EXCLUDED.generic_link,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, md.InvitationID, md.Role, md.Challenges, md.ToolsAccessed, md.GenericLink)
	return err
}

// Delete removes an invitation within its tenant scope.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
