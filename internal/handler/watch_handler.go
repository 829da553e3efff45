package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"event-planner-core/internal/services"
	"event-planner-core/internal/transport/httpdto"
	"event-planner-core/pkg/logger"
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchHandler streams job status over a websocket until the job reaches a
// terminal state. Job state lives in the database, so the stream is a poll
// loop, not a push channel.
type WatchHandler struct {
	service *services.JobService
	log     *logger.Logger
}

func NewWatchHandler(service *services.JobService, log *logger.Logger) *WatchHandler {
	return &WatchHandler{service: service, log: log}
}

func (h *WatchHandler) Watch(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", httpdto.CodeInvalidInput))
		return
	}

	if _, err := h.service.Get(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("watch upgrade failed for job %s: %v", jobID, err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastStatus string
	for {
		j, err := h.service.Get(c.Request.Context(), jobID)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "job unavailable"),
				time.Now().Add(time.Second))
			return
		}

		if string(j.Status) != lastStatus {
			lastStatus = string(j.Status)
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(httpdto.NewJobResponse(j)); err != nil {
				return
			}
		}

		if j.Status.IsTerminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(j.Status)),
				time.Now().Add(time.Second))
			return
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
