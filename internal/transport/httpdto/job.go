package httpdto

import (
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/job"
)

type CreateJobRequest struct {
	EventID          uuid.UUID   `json:"event_id" binding:"required"`
	TicketTypeID     uuid.UUID   `json:"ticket_type_id" binding:"required"`
	EventGuestIDs    []uuid.UUID `json:"event_guest_ids" binding:"required"`
	TicketTemplateID *uuid.UUID  `json:"ticket_template_id"`
}

type JobResponse struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	CreatedBy        uuid.UUID  `json:"created_by"`
	Status           job.Status `json:"status"`
	TicketsProcessed int        `json:"tickets_processed"`
	TicketsTotal     int        `json:"tickets_total"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CorrelationID    uuid.UUID  `json:"correlation_id"`
	AttemptCount     int        `json:"attempt_count"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func NewJobResponse(j job.Job) JobResponse {
	resp := JobResponse{
		ID:               j.ID,
		EventID:          j.EventID,
		CreatedBy:        j.CreatedBy,
		Status:           j.Status,
		TicketsProcessed: j.TicketsProcessed,
		TicketsTotal:     j.TicketsTotal,
		CorrelationID:    j.CorrelationID,
		AttemptCount:     j.AttemptCount,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
	if j.ErrorMessage.Valid {
		msg := j.ErrorMessage.String
		resp.ErrorMessage = &msg
	}
	if j.StartedAt.Valid {
		t := j.StartedAt.Time
		resp.StartedAt = &t
	}
	if j.CompletedAt.Valid {
		t := j.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func NewJobListResponse(jobs []job.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewJobResponse(j))
	}
	return out
}

type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}
