package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"
)

// permCacheStub is an in-memory PermissionCache recording writes.
type permCacheStub struct {
	mu      sync.Mutex
	entries map[string]bool
	sets    int
}

func newPermCacheStub() *permCacheStub {
	return &permCacheStub{entries: map[string]bool{}}
}

func (s *permCacheStub) GetPermission(_ context.Context, userID uuid.UUID, permission string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed, found := s.entries[userID.String()+":"+permission]
	return allowed, found, nil
}

func (s *permCacheStub) SetPermission(_ context.Context, userID uuid.UUID, permission string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID.String()+":"+permission] = allowed
	s.sets++
	return nil
}

func guardedRouter(auth clients.AuthClient, cache PermissionCache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.DevelopmentMode)

	router := gin.New()
	router.POST("/guarded",
		AuthMiddleware(auth, log),
		RequirePermission("tickets:generate", auth, cache, log),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"ok": true}))
		})
	return router
}

func guardedRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequirePermission_Denied(t *testing.T) {
	auth := clients.NewAuthMock()
	userID := uuid.New()
	auth.Users["token"] = clients.AuthUser{ID: userID, DisplayName: "organizer"}
	auth.Denied[userID.String()+":tickets:generate"] = true

	router := guardedRouter(auth, nil)
	rec := guardedRequest(router, "token")
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var resp httpdto.Response[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httpdto.CodeForbidden, resp.Code)
}

func TestRequirePermission_Allowed(t *testing.T) {
	auth := clients.NewAuthMock()
	auth.Users["token"] = clients.AuthUser{ID: uuid.New(), DisplayName: "organizer"}

	router := guardedRouter(auth, nil)
	rec := guardedRequest(router, "token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRequirePermission_CacheFirst(t *testing.T) {
	auth := clients.NewAuthMock()
	userID := uuid.New()
	auth.Users["token"] = clients.AuthUser{ID: userID, DisplayName: "organizer"}

	cache := newPermCacheStub()
	cache.entries[userID.String()+":tickets:generate"] = false

	router := guardedRouter(auth, cache)
	rec := guardedRequest(router, "token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	// The cached denial answered the check without a round trip to Auth.
	assert.Empty(t, auth.CheckedPermissions)

	cache.entries[userID.String()+":tickets:generate"] = true
	rec = guardedRequest(router, "token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, auth.CheckedPermissions)
}

func TestRequirePermission_CacheWriteBack(t *testing.T) {
	auth := clients.NewAuthMock()
	userID := uuid.New()
	auth.Users["token"] = clients.AuthUser{ID: userID, DisplayName: "organizer"}

	cache := newPermCacheStub()
	router := guardedRouter(auth, cache)

	rec := guardedRequest(router, "token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, auth.CheckedPermissions, 1)
	assert.Equal(t, 1, cache.sets)

	// The second request is served from the cache.
	rec = guardedRequest(router, "token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, auth.CheckedPermissions, 1)
}

func TestRequirePermission_WithoutAuthContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := clients.NewAuthMock()
	log := logger.New(logger.DevelopmentMode)

	router := gin.New()
	router.POST("/guarded",
		RequirePermission("tickets:generate", auth, nil, log),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := guardedRequest(router, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
