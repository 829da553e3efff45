package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"
)

const userIDContextKey = "auth_user_id"

// PermissionCache holds Auth service permission decisions between checks.
// Satisfied by redis.PermissionCache; nil disables caching.
type PermissionCache interface {
	GetPermission(ctx context.Context, userID uuid.UUID, permission string) (allowed, found bool, err error)
	SetPermission(ctx context.Context, userID uuid.UUID, permission string, allowed bool) error
}

// AuthMiddleware delegates token validation to the Auth service and stores
// the resolved user in the request context.
func AuthMiddleware(auth clients.AuthClient, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing token", httpdto.CodeUnauthorized))
			c.Abort()
			return
		}

		user, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			c.Abort()
			return
		}

		c.Set(userIDContextKey, user.ID)
		ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequirePermission checks a named permission against the Auth service,
// consulting the cache first. It must run after AuthMiddleware.
func RequirePermission(permission string, auth clients.AuthClient, cache PermissionCache, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("not authenticated", httpdto.CodeUnauthorized))
			c.Abort()
			return
		}

		if cache != nil {
			if allowed, found, err := cache.GetPermission(c.Request.Context(), userID, permission); err == nil && found {
				if !allowed {
					c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("insufficient permissions", httpdto.CodeForbidden))
					c.Abort()
					return
				}
				c.Next()
				return
			}
		}

		allowed, err := auth.CheckPermission(c.Request.Context(), userID, permission)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("auth service unavailable", httpdto.CodeServiceUnavailable))
			c.Abort()
			return
		}
		if cache != nil {
			if err := cache.SetPermission(c.Request.Context(), userID, permission, allowed); err != nil && log != nil {
				log.Warnf("permission cache write failed: %v", err)
			}
		}
		if !allowed {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("insufficient permissions", httpdto.CodeForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
