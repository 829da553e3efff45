package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"event-planner-core/internal/services"
	"event-planner-core/internal/transport/httpdto"
)

type ScanHandler struct {
	service *services.ScanService
}

func NewScanHandler(service *services.ScanService) *ScanHandler {
	return &ScanHandler{service: service}
}

// Validate is the internal endpoint the Scan-Validation service calls after
// its own checks pass.
func (h *ScanHandler) Validate(c *gin.Context) {
	var req httpdto.ValidateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body", httpdto.CodeMissingRequiredFields))
		return
	}

	t, err := h.service.Validate(c.Request.Context(), req.TicketID, req.EventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"ticket_id":    t.ID,
		"ticket_code":  t.TicketCode,
		"is_validated": t.IsValidated,
	}))
}

// History serves the read-only scan trail for a ticket.
func (h *ScanHandler) History(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Query("ticket_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid ticket id", httpdto.CodeInvalidInput))
		return
	}

	records, err := h.service.History(c.Request.Context(), ticketID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(records))
}
