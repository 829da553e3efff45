package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-planner-core/internal/services"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/internal/webhook"
)

type PaymentHandler struct {
	service *services.PaymentService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable body", httpdto.CodeMissingRequiredFields))
		return
	}

	receipt, err := h.service.ProcessWebhook(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(receipt))
}
