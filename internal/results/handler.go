package results

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/invitations"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/queue"
	"github.com/campfire-hq/backend/pkg/response"
	"github.com/campfire-hq/backend/pkg/storage"
)

const (
	// shareIDLength sizes the public share token.
	shareIDLength = 12
	shareRetries  = 10
)

// InvitationSource resolves invitations for result capture.
type InvitationSource interface {
	GetByCode(ctx context.Context, code string) (*models.Invitation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
}

// Enqueuer schedules report rendering after a result is saved.
type Enqueuer interface {
	EnqueueReportRender(ctx context.Context, payload queue.ReportRenderPayload) error
}

// Handler handles assessment result HTTP endpoints.
type Handler struct {
	repo     *Repository
	invites  InvitationSource
	resolver *identity.Resolver
	jobs     Enqueuer
	s3       *storage.S3
	logger   *zap.Logger
}

// NewHandler creates a results handler. jobs and s3 may be nil when the
// collaborators are not configured.
func NewHandler(repo *Repository, invites InvitationSource, resolver *identity.Resolver,
	jobs Enqueuer, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, invites: invites, resolver: resolver, jobs: jobs, s3: s3, logger: logger}
}

func (h *Handler) currentTenant(c *gin.Context) (*models.Tenant, bool) {
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
		return nil, false
	}
	tenant, err := h.resolver.ResolveTenantForUser(c.Request.Context(), profile)
	if err != nil {
		h.logger.Error("resolve tenant failed", zap.Error(err))
		response.Internal(c, "failed to resolve tenant")
		return nil, false
	}
	if tenant == nil {
		response.Forbidden(c, "no tenant assigned")
		return nil, false
	}
	return tenant, true
}

// CreateRequest is the body for POST /assessments/results.
type CreateRequest struct {
	InviteCode      string          `json:"invite_code"`
	InvitationID    *uuid.UUID      `json:"invitation_id"`
	ToolID          string          `json:"tool_id" binding:"required"`
	ToolName        string          `json:"tool_name"`
	Responses       json.RawMessage `json:"responses" binding:"required"`
	Scores          json.RawMessage `json:"scores"`
	Summary         json.RawMessage `json:"summary"`
	Insights        json.RawMessage `json:"insights"`
	Recommendations json.RawMessage `json:"recommendations"`
	UserSnapshot    json.RawMessage `json:"user_snapshot"`
}

// Create handles POST /assessments/results (public, keyed by invite code).
// The result insert, the invitation completion and the tool-access record
// commit atomically; report rendering is queued afterwards and its failure
// never loses the result.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	var inv *models.Invitation
	var err error
	switch {
	case req.InviteCode != "":
		inv, err = h.invites.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(req.InviteCode)))
	case req.InvitationID != nil:
		inv, err = h.invites.GetByID(ctx, *req.InvitationID)
	default:
		response.BadRequest(c, "invite_code or invitation_id required")
		return
	}
	if err != nil {
		h.logger.Error("resolve invitation failed", zap.Error(err))
		response.Internal(c, "failed to save result")
		return
	}
	if inv == nil {
		response.NotFound(c, "invitation not found")
		return
	}

	res := &models.AssessmentResult{
		InvitationID:    inv.ID,
		ToolID:          req.ToolID,
		ToolName:        req.ToolName,
		Responses:       req.Responses,
		Scores:          req.Scores,
		Summary:         req.Summary,
		Insights:        req.Insights,
		Recommendations: req.Recommendations,
		UserSnapshot:    req.UserSnapshot,
	}
	if err := h.saveWithShareID(ctx, res); err != nil {
		h.logger.Error("save result failed", zap.Error(err), zap.String("invitation_id", inv.ID.String()))
		response.Internal(c, "failed to save result")
		return
	}

	if h.jobs != nil {
		payload := queue.ReportRenderPayload{ResultID: res.ID, TenantID: inv.TenantID}
		if err := h.jobs.EnqueueReportRender(ctx, payload); err != nil {
			h.logger.Warn("enqueue report render failed", zap.Error(err), zap.String("result_id", res.ID.String()))
		}
	}
	response.Created(c, res)
}

// saveWithShareID saves res, regenerating the share id on collision.
func (h *Handler) saveWithShareID(ctx context.Context, res *models.AssessmentResult) error {
	for i := 0; i < shareRetries; i++ {
		shareID, err := invitations.GenerateCode(shareIDLength)
		if err != nil {
			return err
		}
		res.ShareID = shareID
		err = h.repo.Save(ctx, res)
		if !errors.Is(err, ErrShareIDTaken) {
			return err
		}
	}
	return ErrShareIDTaken
}

// GetByShare handles GET /share/:shareId (public). The share id is the only
// key; no identity or tenant information is required.
func (h *Handler) GetByShare(c *gin.Context) {
	shareID := strings.TrimSpace(c.Param("shareId"))
	res, err := h.repo.GetByShareID(c.Request.Context(), shareID)
	if err != nil {
		h.logger.Error("get result by share id failed", zap.Error(err))
		response.Internal(c, "failed to load result")
		return
	}
	if res == nil {
		response.NotFound(c, "result not found")
		return
	}
	response.OK(c, res)
}

// List handles GET /results for the caller's tenant. An optional
// ?invitation_id= narrows to one invitee.
func (h *Handler) List(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	if rawID := c.Query("invitation_id"); rawID != "" {
		invitationID, err := uuid.Parse(rawID)
		if err != nil {
			response.BadRequest(c, "invalid invitation id")
			return
		}
		inv, err := h.invites.GetByID(c.Request.Context(), invitationID)
		if err != nil {
			h.logger.Error("get invitation failed", zap.Error(err))
			response.Internal(c, "failed to list results")
			return
		}
		if inv == nil || inv.TenantID != tenant.ID {
			response.NotFound(c, "invitation not found")
			return
		}
		list, err := h.repo.ListByInvitation(c.Request.Context(), invitationID)
		if err != nil {
			h.logger.Error("list results failed", zap.Error(err))
			response.Internal(c, "failed to list results")
			return
		}
		response.OK(c, list)
		return
	}
	list, err := h.repo.ListByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("list results failed", zap.Error(err))
		response.Internal(c, "failed to list results")
		return
	}
	response.OK(c, list)
}

// Get handles GET /results/:id, scoped to the caller's tenant.
func (h *Handler) Get(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid result id")
		return
	}
	res, err := h.repo.GetOwned(c.Request.Context(), tenant.ID, id)
	if err != nil {
		h.logger.Error("get result failed", zap.Error(err))
		response.Internal(c, "failed to load result")
		return
	}
	if res == nil {
		response.NotFound(c, "result not found")
		return
	}
	response.OK(c, res)
}

// DownloadPDF handles GET /results/:id/pdf. Returns a short-lived pre-signed
// URL for the rendered report; 404 until the render worker has produced it.
func (h *Handler) DownloadPDF(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid result id")
		return
	}
	res, err := h.repo.GetOwned(c.Request.Context(), tenant.ID, id)
	if err != nil {
		h.logger.Error("get result failed", zap.Error(err))
		response.Internal(c, "failed to load result")
		return
	}
	if res == nil {
		response.NotFound(c, "result not found")
		return
	}
	if res.PDFKey == "" {
		response.NotFound(c, "report not rendered yet")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ReportsBucket(), res.PDFKey, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign report failed", zap.Error(err), zap.String("result_id", id.String()))
		response.Internal(c, "failed to generate download link")
		return
	}
	response.OK(c, gin.H{"download_url": url})
}
