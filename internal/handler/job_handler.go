package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/middleware"
	"event-planner-core/internal/repository"
	"event-planner-core/internal/services"
	"event-planner-core/internal/transport/httpdto"
)

type JobHandler struct {
	service *services.JobService
}

func NewJobHandler(service *services.JobService) *JobHandler {
	return &JobHandler{service: service}
}

func (h *JobHandler) Create(c *gin.Context) {
	var req httpdto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body", httpdto.CodeMissingRequiredFields))
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("not authenticated", httpdto.CodeUnauthorized))
		return
	}

	input := services.CreateJobInput{
		EventID:       req.EventID,
		TicketTypeID:  req.TicketTypeID,
		EventGuestIDs: req.EventGuestIDs,
		CreatedBy:     userID,
	}
	if req.TicketTemplateID != nil {
		input.TicketTemplateID = uuid.NullUUID{UUID: *req.TicketTemplateID, Valid: true}
	}

	created, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewJobResponse(created)))
}

func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", httpdto.CodeInvalidInput))
		return
	}

	j, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewJobResponse(j)))
}

func (h *JobHandler) List(c *gin.Context) {
	filter, err := jobFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), httpdto.CodeInvalidInput))
		return
	}

	jobs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.JobListResponse{
		Jobs:  httpdto.NewJobListResponse(jobs),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}))
}

func (h *JobHandler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid event id", httpdto.CodeInvalidInput))
		return
	}
	filter, err := jobFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), httpdto.CodeInvalidInput))
		return
	}

	jobs, total, err := h.service.ListByEvent(c.Request.Context(), eventID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.JobListResponse{
		Jobs:  httpdto.NewJobListResponse(jobs),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}))
}

func (h *JobHandler) ListFailed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := h.service.ListFailed(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewJobListResponse(jobs)))
}

func (h *JobHandler) Stats(c *gin.Context) {
	var eventID uuid.NullUUID
	if raw := c.Query("eventId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid event id", httpdto.CodeInvalidInput))
			return
		}
		eventID = uuid.NullUUID{UUID: id, Valid: true}
	}

	stats, err := h.service.Stats(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

func (h *JobHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", httpdto.CodeInvalidInput))
		return
	}
	userID, _ := middleware.UserID(c)

	j, err := h.service.Retry(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewJobResponse(j)))
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", httpdto.CodeInvalidInput))
		return
	}
	userID, _ := middleware.UserID(c)

	j, err := h.service.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewJobResponse(j)))
}

func (h *JobHandler) Deliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", httpdto.CodeInvalidInput))
		return
	}

	items, err := h.service.Deliveries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewDeliveryListResponse(items)))
}

func (h *JobHandler) GenerationStatus(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid event id", httpdto.CodeInvalidInput))
		return
	}

	status, err := h.service.GenerationStatus(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
}

func (h *JobHandler) DownloadTicket(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("ticket_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid ticket id", httpdto.CodeInvalidInput))
		return
	}

	url, err := h.service.TicketDownloadURL(c.Request.Context(), ticketID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"download_url": url}))
}

func jobFilterFromQuery(c *gin.Context) (repository.JobFilter, error) {
	var filter repository.JobFilter
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))

	if raw := c.Query("status"); raw != "" {
		filter.Status = job.Status(raw)
	}
	if raw := c.Query("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.EventID = uuid.NullUUID{UUID: id, Valid: true}
	}
	return filter, nil
}
