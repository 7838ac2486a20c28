package invitations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/middleware"
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

type stubSender struct {
	err error
}

func (s *stubSender) SendInvitation(ctx context.Context, inv *models.Invitation, tenantName string) error {
	return s.err
}

func (s *stubSender) SendInvitationResend(ctx context.Context, inv *models.Invitation, tenantName string) error {
	return s.err
}

// createTestTenant inserts a tenant plus a claimed admin profile and returns
// them with the profile's external id.
func createTestTenant(t *testing.T, pool *pgxpool.Pool) (*models.Tenant, string) {
	t.Helper()
	ctx := context.Background()
	tenantRepo := tenants.NewRepository(pool)
	tenant := &models.Tenant{Name: "acme-" + uuid.NewString()}
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	extID := "ext-" + uuid.NewString()
	profile := &models.UserProfile{
		ExternalID: &extID,
		Email:      "owner-" + uuid.NewString() + "@example.com",
		TenantID:   &tenant.ID,
	}
	require.NoError(t, identity.NewRepository(pool).Create(ctx, profile))
	return tenant, extID
}

func newTestHandler(pool *pgxpool.Pool, sender *stubSender) *Handler {
	profileRepo := identity.NewRepository(pool)
	tenantRepo := tenants.NewRepository(pool)
	resolver := identity.NewResolver(profileRepo, tenantRepo, nil, nil, nil, zap.NewNop())
	return NewHandler(NewRepository(pool), tenantRepo, resolver, sender, "https://app.example.com", zap.NewNop())
}

func newTestRouter(h *Handler, extID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextExternalID, extID) })
	r.POST("/invitations", h.Create)
	r.POST("/invitations/:id/resend", h.Resend)
	return r
}

type invitationEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Invitation models.Invitation `json:"invitation"`
		Duplicate  bool              `json:"duplicate"`
		EmailSent  *bool             `json:"email_sent"`
	} `json:"data"`
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) (*httptest.ResponseRecorder, invitationEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var env invitationEnvelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestCreateInvitationDuplicateReturnsExisting(t *testing.T) {
	pool := testPool(t)
	_, extID := createTestTenant(t, pool)
	r := newTestRouter(newTestHandler(pool, &stubSender{}), extID)

	email := "casey-" + strings.ToLower(uuid.NewString()) + "@example.com"
	body := `{"email":"` + email + `","name":"Casey"}`

	w1, env1 := postJSON(t, r, "/invitations", body)
	require.Equal(t, http.StatusCreated, w1.Code)
	assert.False(t, env1.Data.Duplicate)
	assert.Equal(t, models.InvitationPending, env1.Data.Invitation.Status)
	assert.Len(t, env1.Data.Invitation.InviteCode, CodeLength)

	// Inviting the same recipient again surfaces the original, not an error.
	w2, env2 := postJSON(t, r, "/invitations", body)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.True(t, env2.Data.Duplicate)
	assert.Equal(t, env1.Data.Invitation.ID, env2.Data.Invitation.ID)
	assert.Equal(t, env1.Data.Invitation.InviteCode, env2.Data.Invitation.InviteCode)
}

func TestResendStampsResentAtEvenOnFailure(t *testing.T) {
	pool := testPool(t)
	_, extID := createTestTenant(t, pool)
	sender := &stubSender{err: assert.AnError}
	h := newTestHandler(pool, sender)
	r := newTestRouter(h, extID)

	email := "robin-" + strings.ToLower(uuid.NewString()) + "@example.com"
	_, env := postJSON(t, r, "/invitations", `{"email":"`+email+`","name":"Robin"}`)
	id := env.Data.Invitation.ID

	// Failed delivery still records the resend attempt and leaves the
	// lifecycle untouched.
	w, failEnv := postJSON(t, r, "/invitations/"+id.String()+"/resend", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, failEnv.Data.EmailSent)
	assert.False(t, *failEnv.Data.EmailSent)
	assert.Equal(t, models.InvitationPending, failEnv.Data.Invitation.Status)
	assert.NotNil(t, failEnv.Data.Invitation.ResentAt)
	assert.Nil(t, failEnv.Data.Invitation.SentAt)

	// A successful resend also moves the still-pending invitation to SENT.
	sender.err = nil
	w, okEnv := postJSON(t, r, "/invitations/"+id.String()+"/resend", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, okEnv.Data.EmailSent)
	assert.True(t, *okEnv.Data.EmailSent)
	assert.Equal(t, models.InvitationSent, okEnv.Data.Invitation.Status)
	assert.NotNil(t, okEnv.Data.Invitation.SentAt)
	assert.NotNil(t, okEnv.Data.Invitation.ResentAt)
}
