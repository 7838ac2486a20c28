package leads

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/redis"
	"github.com/campfire-hq/backend/pkg/response"
)

// DedupeWindow is how long repeat submissions from the same email are
// rejected.
const DedupeWindow = 5 * time.Minute

// DedupeKey is the Redis key guarding one email's submission window.
func DedupeKey(email string) string {
	return "leads:dedupe:" + strings.ToLower(email)
}

// Handler handles lead capture HTTP endpoints.
type Handler struct {
	repo   *Repository
	rdb    *redis.Client
	logger *zap.Logger
}

// NewHandler creates a leads handler. rdb may be nil; de-duplication is then
// disabled.
func NewHandler(repo *Repository, rdb *redis.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, rdb: rdb, logger: logger}
}

// CreateRequest is the body for POST /leads.
type CreateRequest struct {
	Email    string          `json:"email" binding:"required,email"`
	Name     string          `json:"name"`
	Source   string          `json:"source"`
	ToolID   string          `json:"tool_id"`
	ToolName string          `json:"tool_name"`
	Metadata json.RawMessage `json:"metadata"`
}

// Create handles POST /leads (public). Repeat submissions from the same email
// inside the de-duplication window get 429. A Redis outage disables the guard
// rather than the endpoint.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx := c.Request.Context()
	claimed := false
	if h.rdb != nil {
		ok, err := h.rdb.SetNX(ctx, DedupeKey(email), 1, DedupeWindow).Result()
		switch {
		case err != nil:
			h.logger.Warn("lead dedupe check failed", zap.Error(err))
		case !ok:
			response.TooManyRequests(c, "lead already submitted recently")
			return
		default:
			claimed = true
		}
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	// Fold the client address into the capture metadata.
	var meta map[string]interface{}
	if err := json.Unmarshal(metadata, &meta); err == nil {
		meta["client_ip"] = c.ClientIP()
		meta["user_agent"] = c.Request.UserAgent()
		if raw, merr := json.Marshal(meta); merr == nil {
			metadata = raw
		}
	}

	lead := &models.Lead{
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		Source:   req.Source,
		ToolID:   req.ToolID,
		ToolName: req.ToolName,
		Metadata: metadata,
	}
	if err := h.repo.Create(ctx, lead); err != nil {
		h.logger.Error("create lead failed", zap.Error(err), zap.String("source", req.Source))
		if claimed {
			// Release the window so a storage error doesn't block a retry.
			if derr := h.rdb.Del(ctx, DedupeKey(email)).Err(); derr != nil {
				h.logger.Warn("lead dedupe release failed", zap.Error(derr))
			}
		}
		response.Internal(c, "failed to save lead")
		return
	}
	response.Created(c, lead)
}

// List handles GET /leads (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list leads failed", zap.Error(err))
		response.Internal(c, "failed to list leads")
		return
	}
	response.OK(c, list)
}
