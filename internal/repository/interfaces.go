package repository

import (
	"context"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/audit"
	"event-planner-core/internal/domain/delivery"
	"event-planner-core/internal/domain/event"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/payment"
	"event-planner-core/internal/domain/ticket"
)

// JobFilter narrows job listings. Zero values mean "no filter".
type JobFilter struct {
	EventID uuid.NullUUID
	Status  job.Status
	Page    int
	Limit   int
}

// TransitionFields carries the per-edge column effects of a status CAS.
// Which fields apply is decided by the edge, not the caller: completed sets
// TicketsProcessed, failed sets ErrorMessage, retry clears both.
type TransitionFields struct {
	TicketsProcessed *int
	ErrorMessage     *string
}

type JobRepository interface {
	// CreateWithTickets atomically inserts the job and its pending ticket
	// rows. Fails with ErrConflict when a non-terminal job already exists
	// for the same correlation id.
	CreateWithTickets(ctx context.Context, tx DBTX, j *job.Job, tickets []ticket.Ticket) error

	GetByID(ctx context.Context, id uuid.UUID) (job.Job, error)
	List(ctx context.Context, filter JobFilter) ([]job.Job, int64, error)
	ListFailed(ctx context.Context, limit int) ([]job.Job, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, filter JobFilter) ([]job.Job, int64, error)
	Stats(ctx context.Context, eventID uuid.NullUUID) (job.Stats, error)

	// Transition is a compare-and-set on status. It returns (nil, nil) when
	// the precondition no longer holds, which callers treat as "someone else
	// got there first".
	Transition(ctx context.Context, tx DBTX, id uuid.UUID, from, to job.Status, fields TransitionFields) (*job.Job, error)
}

type TicketRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (ticket.Ticket, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]ticket.Ticket, error)

	// ApplyOutcomes upserts generation artifacts for tickets belonging to
	// jobID and returns the number of rows actually changed. Artifact fields
	// of validated tickets are never overwritten. Idempotent.
	ApplyOutcomes(ctx context.Context, tx DBTX, jobID uuid.UUID, outcomes []ticket.Outcome) (int, error)

	GenerationBreakdown(ctx context.Context, eventID uuid.UUID) (ticket.GenerationBreakdown, error)

	// MarkValidated flips is_validated once; returns ErrConflict when the
	// ticket was already validated.
	MarkValidated(ctx context.Context, id uuid.UUID) error
}

// EventRepository is the read-only contract over planner-owned tables. The
// job subsystem never writes events, guests or ticket types.
type EventRepository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (event.Event, error)
	GetTicketType(ctx context.Context, id uuid.UUID) (event.TicketType, error)
	// GetEventGuests returns the subset of ids that are guests of eventID.
	GetEventGuests(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]event.EventGuest, error)
}

type DeliveryRepository interface {
	// Insert claims the dedup key. Returns ErrAlreadyExists when a delivery
	// with the same key is already recorded.
	Insert(ctx context.Context, d *delivery.WebhookDelivery) error
	GetByDedupKey(ctx context.Context, dedupKey string) (delivery.WebhookDelivery, error)
	// Reclaim moves an errored delivery back to in_progress so a sender
	// retry can be reprocessed.
	Reclaim(ctx context.Context, id uuid.UUID) error
	SetOutcome(ctx context.Context, tx DBTX, id uuid.UUID, outcome delivery.Outcome, receipt []byte, processingTimeMs int64) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]delivery.WebhookDelivery, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByIntentID(ctx context.Context, intentID string) (payment.Payment, error)
	// Transition is a CAS on payment status; (nil, nil) when the
	// precondition fails.
	Transition(ctx context.Context, tx DBTX, id uuid.UUID, from, to payment.Status, failureReason *string) (*payment.Payment, error)
}

type SystemLogRepository interface {
	Create(ctx context.Context, entry *audit.SystemLog) error
	// ListByEntity returns the activity trail for one entity, oldest first.
	ListByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]audit.SystemLog, error)
}
