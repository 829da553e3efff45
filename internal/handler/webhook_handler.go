package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-planner-core/internal/services"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/internal/webhook"
	core_errors "event-planner-core/pkg/errors"
)

// WebhookHandler is the inbound edge of the reconciliation pipeline. The raw
// body is handed to the reconciler byte-for-byte; any re-encoding here would
// break signature verification.
type WebhookHandler struct {
	reconcile *services.ReconcileService
}

func NewWebhookHandler(reconcile *services.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile}
}

func (h *WebhookHandler) TicketGeneration(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable body", httpdto.CodeMissingRequiredFields))
		return
	}

	receipt, err := h.reconcile.Process(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		// Malformed payloads get the webhook-specific code; the rest of the
		// taxonomy maps as usual.
		if errors.Is(err, core_errors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing required fields", httpdto.CodeMissingRequiredFields))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(receipt))
}
