// Package job models the ticket generation job and its status machine. The
// database is the single source of truth for job state; every transition is a
// compare-and-set on the status column.
package job

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further status transition is expected. Late
// webhooks for terminal jobs still apply ticket artifacts, but never move the
// status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is an edge of the job status DAG.
// failed -> pending is the explicit retry edge; any non-terminal -> failed
// covers cancellation.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusPending
	default:
		return false
	}
}

// Details is the jsonb payload describing what the job must generate.
// EventGuestIDs and TicketTypeID are required before dispatch.
type Details struct {
	EventGuestIDs    []uuid.UUID   `json:"event_guest_ids"`
	TicketTypeID     uuid.UUID     `json:"ticket_type_id"`
	TicketTemplateID uuid.NullUUID `json:"ticket_template_id,omitempty"`
}

type Job struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	CreatedBy        uuid.UUID
	Status           Status
	Details          Details
	TicketsProcessed int
	TicketsTotal     int
	ErrorMessage     sql.NullString
	CorrelationID    uuid.UUID
	AttemptCount     int
	CreatedAt        time.Time
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
	UpdatedAt        time.Time
}

func (j Job) DetailsJSON() ([]byte, error) {
	return json.Marshal(j.Details)
}

// Stats is the per-event aggregate view served by the stats endpoint.
type Stats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
