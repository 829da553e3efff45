package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"
)

// CacheInvalidator drops a user's cached permission decisions. Satisfied by
// redis.PermissionCache.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// AuthCacheHandler receives logout/deactivation notifications from the Auth
// service and evicts the affected user from the permission cache.
type AuthCacheHandler struct {
	cache CacheInvalidator
	log   *logger.Logger
}

func NewAuthCacheHandler(cache CacheInvalidator, log *logger.Logger) *AuthCacheHandler {
	return &AuthCacheHandler{cache: cache, log: log}
}

type invalidateRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *AuthCacheHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("user_id is required", httpdto.CodeMissingRequiredFields))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", httpdto.CodeInvalidInput))
		return
	}

	// Without Redis there is nothing cached, so the notification is a no-op.
	if h.cache == nil {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"invalidated": false}))
		return
	}

	if err := h.cache.InvalidateUser(c.Request.Context(), userID); err != nil {
		h.log.Errorf("permission cache invalidation for user %s failed: %v", userID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"invalidated": true}))
}
