package invitations

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/response"
)

// codeRetries bounds invite code generation against unique collisions.
const codeRetries = 10

// TenantSource is the slice of the tenant repository the handler needs.
type TenantSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// Sender dispatches invitation email.
type Sender interface {
	SendInvitation(ctx context.Context, inv *models.Invitation, tenantName string) error
	SendInvitationResend(ctx context.Context, inv *models.Invitation, tenantName string) error
}

// Handler handles invitation HTTP endpoints.
type Handler struct {
	repo     *Repository
	tenants  TenantSource
	resolver *identity.Resolver
	mailer   Sender
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates an invitations handler.
func NewHandler(repo *Repository, tenants TenantSource, resolver *identity.Resolver, mailer Sender, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, tenants: tenants, resolver: resolver, mailer: mailer, baseURL: baseURL, logger: logger}
}

// currentTenant resolves the caller's tenant from the request identity.
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

// createWithCode inserts inv, regenerating the invite code on collision.
func (h *Handler) createWithCode(ctx context.Context, inv *models.Invitation) error {
	for i := 0; i < codeRetries; i++ {
		code, err := GenerateCode(CodeLength)
		if err != nil {
			return err
		}
		inv.InviteCode = code
		inv.InviteURL = InviteURL(h.baseURL, code)
		err = h.repo.Create(ctx, inv)
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
	}
	return ErrCodeTaken
}

// CreateRequest is the body for POST /invitations.
type CreateRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Create handles POST /invitations. Inviting an already-invited recipient
// returns the existing invitation flagged duplicate instead of an error, so
// the front-end can surface the original link.
func (h *Handler) Create(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.repo.GetByTenantEmail(c.Request.Context(), tenant.ID, email)
	if err != nil {
		h.logger.Error("lookup invitation failed", zap.Error(err))
		response.Internal(c, "failed to create invitation")
		return
	}
	if existing != nil {
		response.OK(c, gin.H{"invitation": existing, "duplicate": true})
		return
	}

	inv := &models.Invitation{
		TenantID: tenant.ID,
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		Status:   models.InvitationPending,
		Message:  req.Message,
	}
	if err := h.createWithCode(c.Request.Context(), inv); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Raced with a concurrent create for the same recipient.
			if existing, lerr := h.repo.GetByTenantEmail(c.Request.Context(), tenant.ID, email); lerr == nil && existing != nil {
				response.OK(c, gin.H{"invitation": existing, "duplicate": true})
				return
			}
		}
		h.logger.Error("create invitation failed", zap.Error(err), zap.String("tenant_id", tenant.ID.String()))
		response.Internal(c, "failed to create invitation")
		return
	}
	response.Created(c, gin.H{"invitation": inv, "duplicate": false})
}

// List handles GET /invitations for the caller's tenant.
func (h *Handler) List(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("list invitations failed", zap.Error(err))
		response.Internal(c, "failed to list invitations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /invitations/:id, scoped to the caller's tenant.
func (h *Handler) Get(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}
	inv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get invitation failed", zap.Error(err))
		response.Internal(c, "failed to load invitation")
		return
	}
	if inv == nil || inv.TenantID != tenant.ID {
		response.NotFound(c, "invitation not found")
		return
	}
	response.OK(c, inv)
}

// Send handles POST /invitations/:id/send. A delivery failure leaves the
// invitation PENDING and reports email_sent=false rather than an error, so
// the operator can retry.
func (h *Handler) Send(c *gin.Context) {
	h.dispatch(c, false)
}

// Resend handles POST /invitations/:id/resend. Resending stamps resent_at
// whether or not delivery succeeds; a successful delivery additionally moves
// a still-PENDING invitation to SENT.
func (h *Handler) Resend(c *gin.Context) {
	h.dispatch(c, true)
}

func (h *Handler) dispatch(c *gin.Context, resend bool) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}
	inv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get invitation failed", zap.Error(err))
		response.Internal(c, "failed to load invitation")
		return
	}
	if inv == nil || inv.TenantID != tenant.ID {
		response.NotFound(c, "invitation not found")
		return
	}
	if inv.Email == "" {
		response.BadRequest(c, "invitation has no recipient")
		return
	}

	ctx := c.Request.Context()
	if resend {
		// The resend attempt is recorded even when delivery fails.
		if err := h.repo.MarkResent(ctx, id); err != nil {
			h.logger.Error("mark invitation resent failed", zap.Error(err), zap.String("invitation_id", id.String()))
		}
	}

	var sendErr error
	if resend {
		sendErr = h.mailer.SendInvitationResend(ctx, inv, tenant.Name)
	} else {
		sendErr = h.mailer.SendInvitation(ctx, inv, tenant.Name)
	}
	if sendErr != nil {
		h.logger.Warn("invitation email failed", zap.Error(sendErr), zap.String("invitation_id", id.String()))
		if resend {
			inv, _ = h.repo.GetByID(ctx, id)
		}
		response.OK(c, gin.H{"invitation": inv, "email_sent": false})
		return
	}

	if err := h.repo.MarkSent(ctx, id); err != nil {
		h.logger.Error("update invitation after send failed", zap.Error(err), zap.String("invitation_id", id.String()))
	}
	inv, _ = h.repo.GetByID(ctx, id)
	response.OK(c, gin.H{"invitation": inv, "email_sent": true})
}

// Delete handles DELETE /invitations/:id.
func (h *Handler) Delete(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), tenant.ID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "invitation not found")
			return
		}
		h.logger.Error("delete invitation failed", zap.Error(err))
		response.Internal(c, "failed to delete invitation")
		return
	}
	response.NoContent(c)
}

// GetByCode handles GET /invite/:code (public). The invitee's assessment
// front-end loads its context from the invite code alone.
func (h *Handler) GetByCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	inv, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("get invitation by code failed", zap.Error(err))
		response.Internal(c, "failed to load invitation")
		return
	}
	if inv == nil {
		response.NotFound(c, "invitation not found")
		return
	}
	tenant, err := h.tenants.GetByID(c.Request.Context(), inv.TenantID)
	if err != nil || tenant == nil {
		h.logger.Error("get tenant for invitation failed", zap.Error(err))
		response.Internal(c, "failed to load invitation")
		return
	}
	response.OK(c, gin.H{
		"invitation":  inv,
		"tenant_name": tenant.Name,
		"tenant_logo": tenant.LogoURL,
	})
}

// TrackRequest is the body for POST /invite/:code/track.
type TrackRequest struct {
	Event Event  `json:"event" binding:"required"`
	Stage string `json:"stage"`
}

// Track handles POST /invite/:code/track (public). Events only ever move the
// invitation forward; replayed or out-of-order events are acknowledged as
// no-ops.
func (h *Handler) Track(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	inv, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("get invitation by code failed", zap.Error(err))
		response.Internal(c, "failed to track event")
		return
	}
	if inv == nil {
		response.NotFound(c, "invitation not found")
		return
	}

	next, changed, err := NextStatus(inv.Status, req.Event)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if changed {
		if _, err := h.repo.Advance(c.Request.Context(), inv.ID, inv.Status, next); err != nil {
			h.logger.Error("advance invitation failed", zap.Error(err), zap.String("invitation_id", inv.ID.String()))
			response.Internal(c, "failed to track event")
			return
		}
		inv.Status = next
	}
	if req.Stage != "" {
		if err := h.repo.UpdateStage(c.Request.Context(), inv.ID, req.Stage); err != nil {
			h.logger.Error("update stage failed", zap.Error(err), zap.String("invitation_id", inv.ID.String()))
		}
	}
	response.OK(c, gin.H{"status": inv.Status, "changed": changed})
}

// MetadataRequest is the body for PUT /invite/:code/metadata.
type MetadataRequest struct {
	Role       string   `json:"role"`
	Challenges []string `json:"challenges"`
}

// UpdateMetadata handles PUT /invite/:code/metadata (public). The invitee
// self-reports role and challenges during the assessment intake.
func (h *Handler) UpdateMetadata(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	inv, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("get invitation by code failed", zap.Error(err))
		response.Internal(c, "failed to update metadata")
		return
	}
	if inv == nil {
		response.NotFound(c, "invitation not found")
		return
	}

	md, err := h.repo.GetMetadata(c.Request.Context(), inv.ID)
	if err != nil {
		h.logger.Error("get metadata failed", zap.Error(err))
		response.Internal(c, "failed to update metadata")
		return
	}
	if md == nil {
		md = &models.InvitationMetadata{InvitationID: inv.ID}
	}
	if req.Role != "" {
		md.Role = req.Role
	}
	if req.Challenges != nil {
		md.Challenges = req.Challenges
	}
	if err := h.repo.UpsertMetadata(c.Request.Context(), md); err != nil {
		h.logger.Error("upsert metadata failed", zap.Error(err))
		response.Internal(c, "failed to update metadata")
		return
	}
	response.OK(c, md)
}
