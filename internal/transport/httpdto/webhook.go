package httpdto

import (
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/delivery"
)

type DeliveryResponse struct {
	ID               uuid.UUID        `json:"id"`
	EventType        string           `json:"event_type"`
	Outcome          delivery.Outcome `json:"outcome"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	ReceivedAt       time.Time        `json:"received_at"`
}

func NewDeliveryListResponse(items []delivery.WebhookDelivery) []DeliveryResponse {
	out := make([]DeliveryResponse, 0, len(items))
	for _, d := range items {
		out = append(out, DeliveryResponse{
			ID:               d.ID,
			EventType:        d.EventType,
			Outcome:          d.Outcome,
			ProcessingTimeMs: d.ProcessingTimeMs,
			ReceivedAt:       d.ReceivedAt,
		})
	}
	return out
}

type ValidateScanRequest struct {
	TicketID uuid.UUID `json:"ticket_id" binding:"required"`
	EventID  uuid.UUID `json:"event_id" binding:"required"`
}
