package tenants

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/response"
	"github.com/campfire-hq/backend/pkg/storage"
)

// Handler handles tenant HTTP endpoints.
type Handler struct {
	repo     *Repository
	resolver *identity.Resolver
	idp      *identity.Client
	s3       *storage.S3
	logger   *zap.Logger
}

// NewHandler creates a tenants handler. idp and s3 may be nil when the
// collaborators are not configured.
func NewHandler(repo *Repository, resolver *identity.Resolver, idp *identity.Client, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, resolver: resolver, idp: idp, s3: s3, logger: logger}
}

// normalizeDomains lowercases domains and ensures the "@" prefix.
func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if !strings.HasPrefix(d, "@") {
			d = "@" + d
		}
		out = append(out, d)
	}
	return out
}

// CreateRequest is the body for POST /tenants.
type CreateRequest struct {
	Name    string   `json:"name" binding:"required"`
	LogoURL string   `json:"logo_url"`
	Domains []string `json:"domains"`
}

// Create handles POST /tenants (admin only). Creates the tenant and, when
// the identity provider is configured, a linked external organization.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tenant := &models.Tenant{
		Name:    strings.TrimSpace(req.Name),
		LogoURL: req.LogoURL,
		Domains: normalizeDomains(req.Domains),
	}
	if h.idp != nil {
		orgID, err := h.idp.CreateOrganization(c.Request.Context(), tenant.Name)
		if err != nil {
			h.logger.Error("create provider org failed", zap.Error(err), zap.String("name", tenant.Name))
			response.ServiceUnavailable(c, "identity provider unavailable")
			return
		}
		tenant.ExternalOrgID = &orgID
	}

	if err := h.repo.Create(c.Request.Context(), tenant); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateName):
			response.Conflict(c, "tenant name already exists")
		case errors.Is(err, ErrDomainClaimed):
			response.Conflict(c, "email domain already claimed by another tenant")
		default:
			h.logger.Error("create tenant failed", zap.Error(err), zap.String("name", tenant.Name))
			response.Internal(c, "failed to create tenant")
		}
		return
	}
	response.Created(c, tenant)
}

// List handles GET /tenants. Admins see all tenants; other callers are
// restricted to their own tenant, or an empty list when unassigned.
func (h *Handler) List(c *gin.Context) {
	roleVal, _ := c.Get(middleware.ContextUserRole)
	if role, _ := roleVal.(string); role == string(models.RoleAdmin) {
		list, err := h.repo.List(c.Request.Context())
		if err != nil {
			h.logger.Error("list tenants failed", zap.Error(err))
			response.Internal(c, "failed to list tenants")
			return
		}
		response.OK(c, list)
		return
	}

	extVal, _ := c.Get(middleware.ContextExternalID)
	extID, _ := extVal.(string)
	profile, err := h.resolver.ResolveCurrentUser(c.Request.Context(), extID)
	if err != nil || profile == nil || profile.TenantID == nil {
		response.OK(c, []*models.Tenant{})
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), *profile.TenantID)
	if err != nil || tenant == nil {
		response.OK(c, []*models.Tenant{})
		return
	}
	response.OK(c, []*models.Tenant{tenant})
}

// Get handles GET /tenants/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get tenant failed", zap.Error(err))
		response.Internal(c, "failed to load tenant")
		return
	}
	if tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}
	response.OK(c, tenant)
}

// UpdateRequest is the body for PATCH /tenants/:id.
type UpdateRequest struct {
	Name          *string  `json:"name"`
	LogoURL       *string  `json:"logo_url"`
	ExternalOrgID *string  `json:"external_org_id"`
	Domains       []string `json:"domains"`
}

// Update handles PATCH /tenants/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.LogoURL != nil {
		tenant.LogoURL = *req.LogoURL
	}
	if req.ExternalOrgID != nil {
		tenant.ExternalOrgID = req.ExternalOrgID
	}
	if req.Domains != nil {
		tenant.Domains = normalizeDomains(req.Domains)
	}

	if err := h.repo.Update(c.Request.Context(), tenant); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateName):
			response.Conflict(c, "tenant name already exists")
		case errors.Is(err, ErrDomainClaimed):
			response.Conflict(c, "email domain already claimed by another tenant")
		default:
			h.logger.Error("update tenant failed", zap.Error(err), zap.String("tenant_id", id.String()))
			response.Internal(c, "failed to update tenant")
		}
		return
	}
	response.OK(c, tenant)
}

// UploadLogo handles POST /tenants/:id/logo (multipart upload to S3).
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	defer file.Close()
	if header.Size > storage.MaxLogoFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateLogoFileType(contentType, header.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(header.Filename)
	}

	key := storage.LogoKey(id.String(), header.Filename)
	url, err := h.s3.Upload(c.Request.Context(), h.s3.LogosBucket(), key, contentType, file, header.Size, true)
	if err != nil {
		h.logger.Error("logo upload failed", zap.Error(err), zap.String("tenant_id", id.String()))
		response.Internal(c, "failed to upload logo")
		return
	}
	if err := h.repo.UpdateLogo(c.Request.Context(), id, url); err != nil {
		h.logger.Error("update logo url failed", zap.Error(err), zap.String("tenant_id", id.String()))
		response.Internal(c, "failed to save logo")
		return
	}
	response.OK(c, gin.H{"logo_url": url})
}

// Delete handles DELETE /tenants/:id (admin only). The provider organization
// is removed first; an organization already absent upstream is tolerated. The
// database delete then cascades to profiles, invitations and campaigns in a
// single statement.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get tenant failed", zap.Error(err))
		response.Internal(c, "failed to load tenant")
		return
	}
	if tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}

	if tenant.ExternalOrgID != nil && h.idp != nil {
		if err := h.idp.DeleteOrganization(c.Request.Context(), *tenant.ExternalOrgID); err != nil {
			h.logger.Error("delete provider org failed", zap.Error(err), zap.String("tenant_id", id.String()))
			response.ServiceUnavailable(c, "identity provider organization could not be deleted")
			return
		}
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete tenant failed", zap.Error(err), zap.String("tenant_id", id.String()))
		response.Internal(c, "failed to delete tenant")
		return
	}
	response.NoContent(c)
}
