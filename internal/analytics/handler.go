package analytics

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/campaigns"
	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/response"
)

// Handler handles GET /analytics/overview.
type Handler struct {
	pool         *pgxpool.Pool
	campaignRepo *campaigns.Repository
	resolver     *identity.Resolver
	logger       *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool, campaignRepo *campaigns.Repository, resolver *identity.Resolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pool: pool, campaignRepo: campaignRepo, resolver: resolver, logger: logger}
}

// StatusCounts breaks the tenant's invitations down by lifecycle status.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Started   int `json:"started"`
	Completed int `json:"completed"`
}

// CampaignSummary is one campaign's row in the dashboard overview.
type CampaignSummary struct {
	Campaign *models.Campaign      `json:"campaign"`
	Stats    *models.CampaignStats `json:"stats"`
}

// OverviewResponse is the JSON shape for the tenant dashboard.
type OverviewResponse struct {
	TotalInvitations int               `json:"total_invitations"`
	StatusCounts     StatusCounts      `json:"status_counts"`
	CompletionRate   int               `json:"completion_rate"`
	TotalResults     int               `json:"total_results"`
	Campaigns        []CampaignSummary `json:"campaigns"`
}

// Overview handles GET /analytics/overview. Counts cover the caller's tenant
// only; the recipient-less campaign anchor invitations are excluded.
func (h *Handler) Overview(c *gin.Context) {
	extVal, _ := c.Get(middleware.ContextExternalID)
	extID, _ := extVal.(string)
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), extID)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			response.Unauthorized(c, "authentication required")
		} else {
			h.logger.Error("resolve user failed", zap.Error(err))
			response.Internal(c, "failed to resolve user")
		}
		return
	}
	tenant, err := h.resolver.ResolveTenantForUser(c.Request.Context(), profile)
	if err != nil {
		h.logger.Error("resolve tenant failed", zap.Error(err))
		response.Internal(c, "failed to resolve tenant")
		return
	}
	if tenant == nil {
		response.Forbidden(c, "no tenant assigned")
		return
	}

	ctx := c.Request.Context()
	var out OverviewResponse

	const counts = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'PENDING'),
		COUNT(*) FILTER (WHERE status = 'SENT'),
		COUNT(*) FILTER (WHERE status = 'OPENED'),
		COUNT(*) FILTER (WHERE status = 'STARTED'),
		COUNT(*) FILTER (WHERE status = 'COMPLETED')
		FROM invitations WHERE tenant_id = $1 AND email <> ''`
	err = h.pool.QueryRow(ctx, counts, tenant.ID).Scan(&out.TotalInvitations,
		&out.StatusCounts.Pending, &out.StatusCounts.Sent, &out.StatusCounts.Opened,
		&out.StatusCounts.Started, &out.StatusCounts.Completed)
	if err != nil {
		h.logger.Error("invitation counts failed", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	out.CompletionRate = campaigns.CompletionRate(out.StatusCounts.Completed, out.TotalInvitations)

	const results = `SELECT COUNT(*) FROM assessment_results r
		JOIN invitations i ON i.id = r.invitation_id
		WHERE i.tenant_id = $1`
	if err := h.pool.QueryRow(ctx, results, tenant.ID).Scan(&out.TotalResults); err != nil {
		h.logger.Error("result count failed", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	list, err := h.campaignRepo.ListByTenant(ctx, tenant.ID)
	if err != nil {
		h.logger.Error("list campaigns failed", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	out.Campaigns = make([]CampaignSummary, 0, len(list))
	for _, cp := range list {
		stats, err := h.campaignRepo.Stats(ctx, cp.ID)
		if err != nil {
			h.logger.Error("campaign stats failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
			continue
		}
		out.Campaigns = append(out.Campaigns, CampaignSummary{Campaign: cp, Stats: stats})
	}
	response.OK(c, out)
}
