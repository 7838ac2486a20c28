package results

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

// ErrShareIDTaken means the generated share id collided; retry with a new one.
var ErrShareIDTaken = errors.New("results: share id taken")

const resultColumns = `id, invitation_id, tool_id, tool_name, responses, scores, summary,
	insights, recommendations, user_snapshot, share_id, pdf_key, pdf_url, created_at`

// Repository handles assessment result persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a results repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanResult(row pgx.Row) (*models.AssessmentResult, error) {
	var res models.AssessmentResult
	err := row.Scan(&res.ID, &res.InvitationID, &res.ToolID, &res.ToolName, &res.Responses,
		&res.Scores, &res.Summary, &res.Insights, &res.Recommendations, &res.UserSnapshot,
		&res.ShareID, &res.PDFKey, &res.PDFURL, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Save stores a result and applies its lifecycle side effects in one
// transaction: the result row is inserted, the invitation moves to COMPLETED,
// and the tool is appended to the invitation's tools_accessed. Either all
// three land or none do.
func (r *Repository) Save(ctx context.Context, res *models.AssessmentResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO assessment_results
		(invitation_id, tool_id, tool_name, responses, scores, summary, insights, recommendations, user_snapshot, share_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, insert, res.InvitationID, res.ToolID, res.ToolName, res.Responses,
		res.Scores, res.Summary, res.Insights, res.Recommendations, res.UserSnapshot, res.ShareID).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "assessment_results_share_id_key" {
			return ErrShareIDTaken
		}
		return fmt.Errorf("insert result: %w", err)
	}

	// COMPLETED is the terminal status, so this is always a forward move.
	const complete = `UPDATE invitations
		SET status = $2, completed_at = COALESCE(completed_at, NOW()), updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, complete, res.InvitationID, models.InvitationCompleted); err != nil {
		return fmt.Errorf("complete invitation: %w", err)
	}

	const tools = `INSERT INTO invitation_metadata (invitation_id, tools_accessed, updated_at)
		VALUES ($1, ARRAY[$2], NOW())
		ON CONFLICT (invitation_id) DO UPDATE
		SET tools_accessed = CASE
				WHEN $2 = ANY(invitation_metadata.tools_accessed) THEN invitation_metadata.tools_accessed
				ELSE array_append(invitation_metadata.tools_accessed, $2)
			END,
			updated_at = NOW()`
	if _, err := tx.Exec(ctx, tools, res.InvitationID, res.ToolID); err != nil {
		return fmt.Errorf("record tool access: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns a result or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AssessmentResult, error) {
	q := fmt.Sprintf(`SELECT %s FROM assessment_results WHERE id = $1`, resultColumns)
	return scanResult(r.pool.QueryRow(ctx, q, id))
}

// GetByShareID returns the result behind a public share id, or nil.
func (r *Repository) GetByShareID(ctx context.Context, shareID string) (*models.AssessmentResult, error) {
	q := fmt.Sprintf(`SELECT %s FROM assessment_results WHERE share_id = $1`, resultColumns)
	return scanResult(r.pool.QueryRow(ctx, q, shareID))
}

// GetOwned returns the result only when its invitation belongs to the tenant.
func (r *Repository) GetOwned(ctx context.Context, tenantID, id uuid.UUID) (*models.AssessmentResult, error) {
	q := `SELECT ` + prefixColumns("r") + ` FROM assessment_results r
		JOIN invitations i ON i.id = r.invitation_id
		WHERE r.id = $1 AND i.tenant_id = $2`
	return scanResult(r.pool.QueryRow(ctx, q, id, tenantID))
}

// ListByTenant returns a tenant's results, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.AssessmentResult, error) {
	q := `SELECT ` + prefixColumns("r") + ` FROM assessment_results r
		JOIN invitations i ON i.id = r.invitation_id
		WHERE i.tenant_id = $1
		ORDER BY r.created_at DESC`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AssessmentResult
	for rows.Next() {
		var res models.AssessmentResult
		if err := rows.Scan(&res.ID, &res.InvitationID, &res.ToolID, &res.ToolName, &res.Responses,
			&res.Scores, &res.Summary, &res.Insights, &res.Recommendations, &res.UserSnapshot,
			&res.ShareID, &res.PDFKey, &res.PDFURL, &res.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &res)
	}
	return list, rows.Err()
}

// ListByInvitation returns one invitee's results, newest first.
func (r *Repository) ListByInvitation(ctx context.Context, invitationID uuid.UUID) ([]*models.AssessmentResult, error) {
	q := fmt.Sprintf(`SELECT %s FROM assessment_results WHERE invitation_id = $1 ORDER BY created_at DESC`, resultColumns)
	rows, err := r.pool.Query(ctx, q, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AssessmentResult
	for rows.Next() {
		var res models.AssessmentResult
		if err := rows.Scan(&res.ID, &res.InvitationID, &res.ToolID, &res.ToolName, &res.Responses,
			&res.Scores, &res.Summary, &res.Insights, &res.Recommendations, &res.UserSnapshot,
			&res.ShareID, &res.PDFKey, &res.PDFURL, &res.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &res)
	}
	return list, rows.Err()
}

// TenantForResult returns the owning tenant id via the result's invitation.
func (r *Repository) TenantForResult(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT i.tenant_id FROM assessment_results r
		JOIN invitations i ON i.id = r.invitation_id
		WHERE r.id = $1`
	var tenantID uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).Scan(&tenantID)
	return tenantID, err
}

// UpdatePDF records the rendered report location.
func (r *Repository) UpdatePDF(ctx context.Context, id uuid.UUID, key, url string) error {
	const q = `UPDATE assessment_results SET pdf_key = $2, pdf_url = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, key, url)
	return err
}

func prefixColumns(alias string) string {
	return alias + `.id, ` + alias + `.invitation_id, ` + alias + `.tool_id, ` + alias + `.tool_name, ` +
		alias + `.responses, ` + alias + `.scores, ` + alias + `.summary, ` + alias + `.insights, ` +
		alias + `.recommendations, ` + alias + `.user_snapshot, ` + alias + `.share_id, ` +
		alias + `.pdf_key, ` + alias + `.pdf_url, ` + alias + `.created_at`
}
