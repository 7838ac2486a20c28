package identity

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/response"
)

// Handler handles the current-user HTTP endpoints.
type Handler struct {
	resolver *Resolver
	repo     *Repository
	logger   *zap.Logger
}

// NewHandler creates an identity handler.
func NewHandler(resolver *Resolver, repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{resolver: resolver, repo: repo, logger: logger}
}

func externalID(c *gin.Context) string {
	v, _ := c.Get(middleware.ContextExternalID)
	id, _ := v.(string)
	return id
}

// Me handles GET /me. Resolves (lazily creating) the caller's profile and tenant.
func (h *Handler) Me(c *gin.Context) {
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), externalID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthenticated):
			response.Unauthorized(c, "no verified identity")
		case errors.Is(err, ErrNoEmail):
			response.OK(c, gin.H{"profile": nil})
		default:
			h.logger.Error("resolve current user failed", zap.Error(err))
			response.Internal(c, "failed to resolve user")
		}
		return
	}
	tenant, err := h.resolver.ResolveTenantForUser(c.Request.Context(), profile)
	if err != nil {
		h.logger.Error("resolve tenant failed", zap.Error(err), zap.String("profile_id", profile.ID.String()))
		response.Internal(c, "failed to resolve tenant")
		return
	}
	response.OK(c, gin.H{"profile": profile, "tenant": tenant})
}

// UpdateMeRequest is the body for PATCH /me.
type UpdateMeRequest struct {
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Role               *string `json:"role"`
	Department         *string `json:"department"`
	OnboardingComplete *bool   `json:"onboarding_complete"`
}

// UpdateMe handles PATCH /me. Updates the caller's mutable profile fields.
func (h *Handler) UpdateMe(c *gin.Context) {
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), externalID(c))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			response.Unauthorized(c, "no verified identity")
			return
		}
		h.logger.Error("resolve current user failed", zap.Error(err))
		response.Internal(c, "failed to resolve user")
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FirstName != nil {
		profile.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		profile.LastName = *req.LastName
	}
	if req.Role != nil {
		profile.Role = *req.Role
	}
	if req.Department != nil {
		profile.Department = *req.Department
	}
	if req.OnboardingComplete != nil {
		profile.OnboardingComplete = *req.OnboardingComplete
	}
	if err := h.repo.UpdateProfile(c.Request.Context(), profile); err != nil {
		h.logger.Error("update profile failed", zap.Error(err), zap.String("profile_id", profile.ID.String()))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, profile)
}

// ListTenantMembers handles GET /tenants/:id/members. Callers may list their
// own tenant; admins may list any.
func (h *Handler) ListTenantMembers(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), externalID(c))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			response.Unauthorized(c, "no verified identity")
			return
		}
		h.logger.Error("resolve current user failed", zap.Error(err))
		response.Internal(c, "failed to resolve user")
		return
	}
	roleVal, _ := c.Get(middleware.ContextUserRole)
	if role, _ := roleVal.(string); role != string(models.RoleAdmin) {
		if profile.TenantID == nil || *profile.TenantID != tenantID {
			response.Forbidden(c, "insufficient permissions")
			return
		}
	}
	members, err := h.repo.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("list tenant members failed", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, members)
}

// AutoAssignTenant handles POST /me/tenant. Assigns the caller to the tenant
// claiming their email domain, if any.
func (h *Handler) AutoAssignTenant(c *gin.Context) {
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), externalID(c))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			response.Unauthorized(c, "no verified identity")
			return
		}
		h.logger.Error("resolve current user failed", zap.Error(err))
		response.Internal(c, "failed to resolve user")
		return
	}
	if profile.TenantID != nil {
		tenant, err := h.resolver.ResolveTenantForUser(c.Request.Context(), profile)
		if err != nil {
			response.Internal(c, "failed to resolve tenant")
			return
		}
		response.OK(c, AssignResult{Outcome: AssignOutcomeAssigned, Tenant: tenant})
		return
	}

	result, err := h.resolver.AutoAssignTenantByEmailDomain(c.Request.Context(), profile)
	if err != nil {
		h.logger.Error("auto assign tenant failed", zap.Error(err), zap.String("profile_id", profile.ID.String()))
		response.Internal(c, "failed to assign tenant")
		return
	}
	response.OK(c, result)
}
