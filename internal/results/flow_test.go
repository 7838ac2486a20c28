package results

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-hq/backend/internal/invitations"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/internal/tenants"
	"github.com/campfire-hq/backend/pkg/database"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

// TestInvitationLifecycleThroughResult walks one invitee from creation to a
// saved result: PENDING, sent, opened, then completed atomically with the
// result insert.
func TestInvitationLifecycleThroughResult(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tenant := &models.Tenant{Name: "acme-" + uuid.NewString()}
	require.NoError(t, tenants.NewRepository(pool).Create(ctx, tenant))

	invRepo := invitations.NewRepository(pool)
	code, err := invitations.GenerateCode(invitations.CodeLength)
	require.NoError(t, err)
	inv := &models.Invitation{
		TenantID:   tenant.ID,
		Email:      "invitee-" + uuid.NewString() + "@example.com",
		InviteCode: code,
		InviteURL:  invitations.InviteURL("https://app.example.com", code),
		Status:     models.InvitationPending,
	}
	require.NoError(t, invRepo.Create(ctx, inv))
	assert.Equal(t, models.InvitationPending, inv.Status)

	require.NoError(t, invRepo.MarkSent(ctx, inv.ID))
	sent, err := invRepo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationSent, sent.Status)
	assert.NotNil(t, sent.SentAt)

	next, changed, err := invitations.NextStatus(sent.Status, invitations.EventOpened)
	require.NoError(t, err)
	require.True(t, changed)
	advanced, err := invRepo.Advance(ctx, inv.ID, sent.Status, next)
	require.NoError(t, err)
	require.True(t, advanced)

	shareID, err := invitations.GenerateCode(12)
	require.NoError(t, err)
	res := &models.AssessmentResult{
		InvitationID: inv.ID,
		ToolID:       "trust-audit",
		Responses:    json.RawMessage(`{"q1":"a"}`),
		ShareID:      shareID,
	}
	require.NoError(t, NewRepository(pool).Save(ctx, res))
	assert.NotEqual(t, uuid.Nil, res.ID)

	// The invitation completes in the same transaction as the result insert.
	done, err := invRepo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	found, err := NewRepository(pool).GetByShareID(ctx, shareID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, res.ID, found.ID)

	md, err := invRepo.GetMetadata(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Contains(t, md.ToolsAccessed, "trust-audit")
}
