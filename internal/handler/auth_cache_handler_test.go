package handler

import (
	"bytes"
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

	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"
)

type invalidatorSpy struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (s *invalidatorSpy) InvalidateUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, userID)
	return nil
}

func invalidateRouter(cache CacheInvalidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewAuthCacheHandler(cache, logger.New(logger.DevelopmentMode))
	router.POST("/api/internal/auth/cache-invalidate", h.Invalidate)
	return router
}

func postInvalidate(router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/internal/auth/cache-invalidate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	spy := &invalidatorSpy{}
	router := invalidateRouter(spy)

	userID := uuid.New()
	body, err := json.Marshal(gin.H{"user_id": userID.String()})
	require.NoError(t, err)

	rec := postInvalidate(router, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []uuid.UUID{userID}, spy.ids)
}

func TestCacheInvalidateEndpoint_BadInput(t *testing.T) {
	spy := &invalidatorSpy{}
	router := invalidateRouter(spy)

	rec := postInvalidate(router, []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp httpdto.Response[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httpdto.CodeMissingRequiredFields, resp.Code)

	rec = postInvalidate(router, []byte(`{"user_id":"not-a-uuid"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, spy.ids)
}

func TestCacheInvalidateEndpoint_CacheDisabled(t *testing.T) {
	router := invalidateRouter(nil)

	body, err := json.Marshal(gin.H{"user_id": uuid.NewString()})
	require.NoError(t, err)

	rec := postInvalidate(router, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpdto.Response[map[string]bool]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data["invalidated"])
}
