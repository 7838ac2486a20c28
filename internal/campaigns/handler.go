package campaigns

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/invitations"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/response"
)

// codeRetries bounds campaign code generation against unique collisions.
const codeRetries = 10

// ErrCodeExhausted means every generated code collided.
var ErrCodeExhausted = errors.New("campaigns: code generation exhausted")

// TenantSource is the slice of the tenant repository the handler needs.
type TenantSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// ProfileClaimer pre-creates invitee profiles on registration.
type ProfileClaimer interface {
	ClaimByEmail(ctx context.Context, profile *models.UserProfile) error
}

// Sender dispatches campaign launch email.
type Sender interface {
	SendCampaignInvitation(ctx context.Context, inv *models.Invitation, campaign *models.Campaign, tenantName string) error
}

// Handler handles campaign HTTP endpoints.
type Handler struct {
	repo     *Repository
	invites  *invitations.Repository
	tenants  TenantSource
	resolver *identity.Resolver
	profiles ProfileClaimer
	mailer   Sender
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates a campaigns handler.
func NewHandler(repo *Repository, invites *invitations.Repository, tenants TenantSource,
	resolver *identity.Resolver, profiles ProfileClaimer, mailer Sender, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, invites: invites, tenants: tenants, resolver: resolver,
		profiles: profiles, mailer: mailer, baseURL: baseURL, logger: logger}
}

func (h *Handler) currentTenant(c *gin.Context) (*models.Tenant, *models.UserProfile, bool) {
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
		return nil, nil, false
	}
	tenant, err := h.resolver.ResolveTenantForUser(c.Request.Context(), profile)
	if err != nil {
		h.logger.Error("resolve tenant failed", zap.Error(err))
		response.Internal(c, "failed to resolve tenant")
		return nil, nil, false
	}
	if tenant == nil {
		response.Forbidden(c, "no tenant assigned")
		return nil, nil, false
	}
	return tenant, profile, true
}

// campaignType derives the reporting partition from the creator's role:
// admins run HR campaigns, everyone else shares with their own team.
func campaignType(role string) string {
	if role == string(models.RoleAdmin) {
		return models.CampaignTypeHR
	}
	return models.CampaignTypeTeamShare
}

// createWithCode inserts cp, regenerating the access code on collision.
func (h *Handler) createWithCode(ctx context.Context, cp *models.Campaign) error {
	for i := 0; i < codeRetries; i++ {
		code, err := invitations.GenerateCode(invitations.CodeLength)
		if err != nil {
			return err
		}
		cp.Code = code
		cp.Link = invitations.InviteURL(h.baseURL, code)
		err = h.repo.Create(ctx, cp)
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
	}
	return ErrCodeExhausted
}

// CreateRequest is the body for POST /campaigns.
type CreateRequest struct {
	Name         string     `json:"name" binding:"required"`
	Description  string     `json:"description"`
	ToolID       string     `json:"tool_id"`
	ToolName     string     `json:"tool_name"`
	ToolPath     string     `json:"tool_path"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Participants []string   `json:"participants"`
}

// Create handles POST /campaigns. Alongside the campaign it creates the
// recipient-less anchor invitation whose invite code equals the campaign
// code, so the shared campaign link resolves through the same invite lookup
// as personal links.
func (h *Handler) Create(c *gin.Context) {
	tenant, profile, ok := h.currentTenant(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	roleVal, _ := c.Get(middleware.ContextUserRole)
	role, _ := roleVal.(string)
	creatorID := ""
	if profile.ExternalID != nil {
		creatorID = *profile.ExternalID
	}

	cp := &models.Campaign{
		TenantID:    tenant.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      models.CampaignActive,
		Type:        campaignType(role),
		ToolID:      req.ToolID,
		ToolName:    req.ToolName,
		ToolPath:    req.ToolPath,
		CreatorID:   creatorID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := h.createWithCode(c.Request.Context(), cp); err != nil {
		h.logger.Error("create campaign failed", zap.Error(err), zap.String("tenant_id", tenant.ID.String()))
		response.Internal(c, "failed to create campaign")
		return
	}

	anchor := &models.Invitation{
		TenantID:   tenant.ID,
		CampaignID: &cp.ID,
		InviteCode: cp.Code,
		InviteURL:  cp.Link,
		Status:     models.InvitationPending,
	}
	if err := h.invites.Create(c.Request.Context(), anchor); err != nil {
		h.logger.Error("create anchor invitation failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		response.Internal(c, "failed to create campaign")
		return
	}
	if err := h.invites.UpsertMetadata(c.Request.Context(), &models.InvitationMetadata{
		InvitationID: anchor.ID,
		GenericLink:  true,
	}); err != nil {
		h.logger.Error("mark anchor invitation failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
	}

	for _, email := range req.Participants {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if err := h.repo.AddParticipant(c.Request.Context(), cp.ID, email); err != nil {
			h.logger.Error("add participant failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		}
	}
	response.Created(c, cp)
}

// List handles GET /campaigns for the caller's tenant.
func (h *Handler) List(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("list campaigns failed", zap.Error(err))
		response.Internal(c, "failed to list campaigns")
		return
	}
	response.OK(c, list)
}

// Get handles GET /campaigns/:id.
func (h *Handler) Get(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	cp, ok2 := h.loadOwned(c, tenant)
	if !ok2 {
		return
	}
	response.OK(c, cp)
}

// Stats handles GET /campaigns/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	cp, ok2 := h.loadOwned(c, tenant)
	if !ok2 {
		return
	}
	stats, err := h.repo.Stats(c.Request.Context(), cp.ID)
	if err != nil {
		h.logger.Error("campaign stats failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		response.Internal(c, "failed to load campaign stats")
		return
	}
	response.OK(c, gin.H{"campaign": cp, "stats": stats})
}

func (h *Handler) loadOwned(c *gin.Context, tenant *models.Tenant) (*models.Campaign, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid campaign id")
		return nil, false
	}
	cp, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get campaign failed", zap.Error(err))
		response.Internal(c, "failed to load campaign")
		return nil, false
	}
	if cp == nil || cp.TenantID != tenant.ID {
		response.NotFound(c, "campaign not found")
		return nil, false
	}
	return cp, true
}

// LaunchResult reports one participant's dispatch outcome.
type LaunchResult struct {
	Email string `json:"email"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Launch handles POST /campaigns/:id/launch. Every registered participant
// gets a personal invitation linked to the campaign and a launch email. The
// response reports per-participant outcomes; partial failure is not an error.
func (h *Handler) Launch(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	cp, ok2 := h.loadOwned(c, tenant)
	if !ok2 {
		return
	}
	if cp.Status != models.CampaignActive {
		response.BadRequest(c, "campaign is not active")
		return
	}

	participants, err := h.repo.ListParticipants(c.Request.Context(), cp.ID)
	if err != nil {
		h.logger.Error("list participants failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		response.Internal(c, "failed to launch campaign")
		return
	}

	ctx := c.Request.Context()
	results := make([]LaunchResult, 0, len(participants))
	sent := 0
	for _, p := range participants {
		inv, err := h.participantInvitation(ctx, tenant.ID, cp, p.Email)
		if err != nil {
			results = append(results, LaunchResult{Email: p.Email, Error: err.Error()})
			continue
		}
		if err := h.mailer.SendCampaignInvitation(ctx, inv, cp, tenant.Name); err != nil {
			h.logger.Warn("campaign email failed", zap.Error(err), zap.String("email", p.Email))
			results = append(results, LaunchResult{Email: p.Email, Error: err.Error()})
			continue
		}
		if err := h.invites.MarkSent(ctx, inv.ID); err != nil {
			h.logger.Error("mark invitation sent failed", zap.Error(err), zap.String("invitation_id", inv.ID.String()))
		}
		sent++
		results = append(results, LaunchResult{Email: p.Email, Sent: true})
	}
	response.OK(c, gin.H{"sent": sent, "total": len(participants), "results": results})
}

// participantInvitation returns the participant's campaign-linked invitation,
// creating one or attaching the campaign to an existing tenant invitation.
func (h *Handler) participantInvitation(ctx context.Context, tenantID uuid.UUID, cp *models.Campaign, email string) (*models.Invitation, error) {
	inv, err := h.invites.GetByTenantEmail(ctx, tenantID, email)
	if err != nil {
		return nil, err
	}
	if inv != nil {
		if inv.CampaignID == nil || *inv.CampaignID != cp.ID {
			if err := h.invites.AttachCampaign(ctx, inv.ID, cp.ID); err != nil {
				return nil, err
			}
			inv.CampaignID = &cp.ID
		}
		return inv, nil
	}

	inv = &models.Invitation{
		TenantID:   tenantID,
		CampaignID: &cp.ID,
		Email:      email,
		Status:     models.InvitationPending,
	}
	for i := 0; i < codeRetries; i++ {
		code, err := invitations.GenerateCode(invitations.CodeLength)
		if err != nil {
			return nil, err
		}
		inv.InviteCode = code
		inv.InviteURL = invitations.InviteURL(h.baseURL, code)
		err = h.invites.Create(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, invitations.ErrCodeTaken) {
			return nil, err
		}
	}
	return nil, ErrCodeExhausted
}

// RegisterRequest is the body for POST /campaigns/register.
type RegisterRequest struct {
	Code  string `json:"code" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// Register handles POST /campaigns/register (public). A visitor with the
// shared campaign link joins the campaign: their profile is pre-created as a
// member of the campaign's tenant so a later sign-in claims it, and they
// receive a personal invitation for progress tracking.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx := c.Request.Context()
	cp, err := h.repo.GetByCode(ctx, code)
	if err != nil {
		h.logger.Error("get campaign by code failed", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}
	if cp == nil {
		response.NotFound(c, "campaign not found")
		return
	}
	if cp.Status != models.CampaignActive {
		response.Conflict(c, "campaign is no longer active")
		return
	}

	profile := &models.UserProfile{Email: email, TenantID: &cp.TenantID}
	if first, last, found := strings.Cut(strings.TrimSpace(req.Name), " "); found {
		profile.FirstName, profile.LastName = first, last
	} else {
		profile.FirstName = strings.TrimSpace(req.Name)
	}
	if err := h.profiles.ClaimByEmail(ctx, profile); err != nil {
		h.logger.Error("claim profile failed", zap.Error(err), zap.String("email", email))
		response.Internal(c, "failed to register")
		return
	}

	if err := h.repo.AddParticipant(ctx, cp.ID, email); err != nil {
		h.logger.Error("add participant failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		response.Internal(c, "failed to register")
		return
	}

	inv, err := h.participantInvitation(ctx, cp.TenantID, cp, email)
	if err != nil {
		h.logger.Error("participant invitation failed", zap.Error(err), zap.String("email", email))
		response.Internal(c, "failed to register")
		return
	}
	if req.Name != "" && inv.Name == "" {
		inv.Name = strings.TrimSpace(req.Name)
	}
	response.OK(c, gin.H{
		"campaign":    cp,
		"invite_code": inv.InviteCode,
		"invite_url":  inv.InviteURL,
	})
}

// UpdateStatusRequest is the body for PATCH /campaigns/:id/status.
type UpdateStatusRequest struct {
	Status models.CampaignStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /campaigns/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	cp, ok2 := h.loadOwned(c, tenant)
	if !ok2 {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Status != models.CampaignActive && req.Status != models.CampaignCompleted {
		response.BadRequest(c, "invalid status")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), cp.ID, req.Status); err != nil {
		h.logger.Error("update campaign status failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		response.Internal(c, "failed to update campaign")
		return
	}
	cp.Status = req.Status
	response.OK(c, cp)
}

// Delete handles DELETE /campaigns/:id.
func (h *Handler) Delete(c *gin.Context) {
	tenant, _, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid campaign id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), tenant.ID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "campaign not found")
			return
		}
		h.logger.Error("delete campaign failed", zap.Error(err))
		response.Internal(c, "failed to delete campaign")
		return
	}
	response.NoContent(c)
}
