package campaigns

import (
	"context"
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

func registerRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/campaigns/register", h.Register)
	return r
}

func TestRegisterAttachesProfileToCampaignTenant(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tenantRepo := tenants.NewRepository(pool)
	tenant := &models.Tenant{Name: "acme-" + uuid.NewString()}
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	repo := NewRepository(pool)
	code, err := invitations.GenerateCode(invitations.CodeLength)
	require.NoError(t, err)
	cp := &models.Campaign{
		TenantID: tenant.ID,
		Name:     "Q3 Leadership",
		Status:   models.CampaignActive,
		Type:     models.CampaignTypeHR,
		Code:     code,
		Link:     invitations.InviteURL("https://app.example.com", code),
	}
	require.NoError(t, repo.Create(ctx, cp))

	profileRepo := identity.NewRepository(pool)
	invRepo := invitations.NewRepository(pool)
	resolver := identity.NewResolver(profileRepo, tenantRepo, nil, nil, nil, zap.NewNop())
	h := NewHandler(repo, invRepo, tenantRepo, resolver, profileRepo, nil, "https://app.example.com", zap.NewNop())
	r := registerRouter(h)

	email := "invitee-" + strings.ToLower(uuid.NewString()) + "@example.com"
	body := `{"code":"` + cp.Code + `","email":"` + email + `","name":"Robin Okafor"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/campaigns/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Registration makes the visitor a member of the campaign's tenant, so
	// their later sign-in resolves a tenant instead of 403.
	profile, err := profileRepo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.NotNil(t, profile.TenantID)
	assert.Equal(t, tenant.ID, *profile.TenantID)
	assert.Equal(t, "Robin", profile.FirstName)
	assert.Equal(t, "Okafor", profile.LastName)

	inv, err := invRepo.GetByTenantEmail(ctx, tenant.ID, email)
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.NotNil(t, inv.CampaignID)
	assert.Equal(t, cp.ID, *inv.CampaignID)
}

func TestRegisterRejectsInactiveCampaign(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tenantRepo := tenants.NewRepository(pool)
	tenant := &models.Tenant{Name: "acme-" + uuid.NewString()}
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	repo := NewRepository(pool)
	code, err := invitations.GenerateCode(invitations.CodeLength)
	require.NoError(t, err)
	cp := &models.Campaign{
		TenantID: tenant.ID,
		Name:     "Wrapped Up",
		Status:   models.CampaignActive,
		Type:     models.CampaignTypeTeamShare,
		Code:     code,
	}
	require.NoError(t, repo.Create(ctx, cp))
	require.NoError(t, repo.UpdateStatus(ctx, cp.ID, models.CampaignCompleted))

	profileRepo := identity.NewRepository(pool)
	resolver := identity.NewResolver(profileRepo, tenantRepo, nil, nil, nil, zap.NewNop())
	h := NewHandler(repo, invitations.NewRepository(pool), tenantRepo, resolver, profileRepo, nil, "https://app.example.com", zap.NewNop())
	r := registerRouter(h)

	body := `{"code":"` + cp.Code + `","email":"late-` + strings.ToLower(uuid.NewString()) + `@example.com"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/campaigns/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}
