package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/domain/audit"
	"event-planner-core/internal/domain/delivery"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/ticket"
	"event-planner-core/internal/monitoring"
	"event-planner-core/internal/repository"
	core_errors "event-planner-core/pkg/errors"
	"event-planner-core/pkg/logger"
)

// Enqueuer hands a job id to the dispatch worker without blocking the
// request path.
type Enqueuer interface {
	Enqueue(jobID uuid.UUID)
}

// Presigner produces time-limited download URLs for generated ticket files.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type JobService struct {
	jobs       repository.JobRepository
	tickets    repository.TicketRepository
	events     repository.EventRepository
	deliveries repository.DeliveryRepository
	logs       repository.SystemLogRepository
	tx         repository.TxRunner
	notifier   clients.NotificationClient
	dispatch   Enqueuer
	presigner  Presigner
	monitor    *monitoring.Monitor
	log        *logger.Logger
}

func NewJobService(
	jobs repository.JobRepository,
	tickets repository.TicketRepository,
	events repository.EventRepository,
	deliveries repository.DeliveryRepository,
	logs repository.SystemLogRepository,
	tx repository.TxRunner,
	notifier clients.NotificationClient,
	dispatch Enqueuer,
	presigner Presigner,
	monitor *monitoring.Monitor,
	log *logger.Logger,
) *JobService {
	return &JobService{
		jobs:       jobs,
		tickets:    tickets,
		events:     events,
		deliveries: deliveries,
		logs:       logs,
		tx:         tx,
		notifier:   notifier,
		dispatch:   dispatch,
		presigner:  presigner,
		monitor:    monitor,
		log:        log,
	}
}

type CreateJobInput struct {
	EventID          uuid.UUID
	TicketTypeID     uuid.UUID
	EventGuestIDs    []uuid.UUID
	TicketTemplateID uuid.NullUUID
	CreatedBy        uuid.UUID
}

// Create validates the request, atomically persists the job with its pending
// ticket rows, and enqueues dispatch.
func (s *JobService) Create(ctx context.Context, in CreateJobInput) (job.Job, error) {
	if len(in.EventGuestIDs) == 0 {
		return job.Job{}, fmt.Errorf("%w: event_guest_ids is required", core_errors.ErrInvalidInput)
	}
	seen := make(map[uuid.UUID]struct{}, len(in.EventGuestIDs))
	for _, id := range in.EventGuestIDs {
		if _, dup := seen[id]; dup {
			return job.Job{}, fmt.Errorf("%w: duplicate event guest %s", core_errors.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	ev, err := s.events.GetEvent(ctx, in.EventID)
	if err != nil {
		return job.Job{}, err
	}
	if ev.IsDeleted() {
		return job.Job{}, core_errors.ErrNotFound
	}

	tt, err := s.events.GetTicketType(ctx, in.TicketTypeID)
	if err != nil {
		return job.Job{}, err
	}
	if tt.EventID != in.EventID {
		return job.Job{}, fmt.Errorf("%w: ticket type does not belong to event", core_errors.ErrInvalidInput)
	}

	guests, err := s.events.GetEventGuests(ctx, in.EventID, in.EventGuestIDs)
	if err != nil {
		return job.Job{}, err
	}
	if len(guests) != len(in.EventGuestIDs) {
		return job.Job{}, fmt.Errorf("%w: some guests do not belong to event", core_errors.ErrInvalidInput)
	}

	now := time.Now()
	j := job.Job{
		ID:        uuid.New(),
		EventID:   in.EventID,
		CreatedBy: in.CreatedBy,
		Status:    job.StatusPending,
		Details: job.Details{
			EventGuestIDs:    in.EventGuestIDs,
			TicketTypeID:     in.TicketTypeID,
			TicketTemplateID: in.TicketTemplateID,
		},
		TicketsTotal:  len(in.EventGuestIDs),
		CorrelationID: uuid.New(),
		AttemptCount:  1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	rows := make([]ticket.Ticket, 0, len(in.EventGuestIDs))
	for _, guestID := range in.EventGuestIDs {
		rows = append(rows, ticket.Ticket{
			ID:               uuid.New(),
			EventGuestID:     guestID,
			TicketTypeID:     in.TicketTypeID,
			TicketTemplateID: in.TicketTemplateID,
			TicketCode:       newTicketCode(),
			Status:           ticket.StatusPending,
			GenerationJobID:  uuid.NullUUID{UUID: j.ID, Valid: true},
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	err = s.tx.RunInTx(ctx, func(tx repository.DBTX) error {
		return s.jobs.CreateWithTickets(ctx, tx, &j, rows)
	})
	if err != nil {
		return job.Job{}, err
	}

	s.audit(ctx, in.CreatedBy, "job.created", j.ID, map[string]interface{}{
		"event_id":      j.EventID,
		"tickets_total": j.TicketsTotal,
	})
	s.notify(ctx, clients.Notification{
		EventID:  j.EventID,
		Template: "ticket_generation_started",
		Variables: map[string]string{
			"job_id":        j.ID.String(),
			"tickets_total": fmt.Sprintf("%d", j.TicketsTotal),
		},
	})
	s.dispatch.Enqueue(j.ID)
	return j, nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (job.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *JobService) List(ctx context.Context, filter repository.JobFilter) ([]job.Job, int64, error) {
	return s.jobs.List(ctx, filter)
}

func (s *JobService) ListByEvent(ctx context.Context, eventID uuid.UUID, filter repository.JobFilter) ([]job.Job, int64, error) {
	return s.jobs.ListByEvent(ctx, eventID, filter)
}

func (s *JobService) ListFailed(ctx context.Context, limit int) ([]job.Job, error) {
	return s.jobs.ListFailed(ctx, limit)
}

func (s *JobService) Stats(ctx context.Context, eventID uuid.NullUUID) (job.Stats, error) {
	return s.jobs.Stats(ctx, eventID)
}

// Deliveries lists the webhook ledger rows recorded for a job, oldest first.
func (s *JobService) Deliveries(ctx context.Context, jobID uuid.UUID) ([]delivery.WebhookDelivery, error) {
	return s.deliveries.ListByJob(ctx, jobID)
}

// Retry moves a failed job back to pending and re-enqueues dispatch. Only the
// failed -> pending edge exists; anything else conflicts.
func (s *JobService) Retry(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (job.Job, error) {
	current, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if current.Status != job.StatusFailed {
		return job.Job{}, core_errors.ErrNotRetryable
	}

	updated, err := s.jobs.Transition(ctx, nil, id, job.StatusFailed, job.StatusPending, repository.TransitionFields{})
	if err != nil {
		return job.Job{}, err
	}
	if updated == nil {
		// Lost the race against another writer.
		return job.Job{}, core_errors.ErrNotRetryable
	}

	s.monitor.TrackTransition(string(job.StatusFailed), string(job.StatusPending))
	s.audit(ctx, actorID, "job.retried", id, map[string]interface{}{
		"attempt_count": updated.AttemptCount,
	})
	s.dispatch.Enqueue(id)
	return *updated, nil
}

// Cancel moves a non-terminal job to failed. Cancellation is advisory: a late
// webhook for a cancelled job still applies ticket artifacts.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (job.Job, error) {
	reason := "cancelled by user"

	// The job may move pending -> processing between the read and the CAS, so
	// one re-read is allowed before giving up.
	for attempt := 0; attempt < 2; attempt++ {
		current, err := s.jobs.GetByID(ctx, id)
		if err != nil {
			return job.Job{}, err
		}
		if current.Status.IsTerminal() {
			return job.Job{}, core_errors.ErrNotCancellable
		}

		updated, err := s.jobs.Transition(ctx, nil, id, current.Status, job.StatusFailed,
			repository.TransitionFields{ErrorMessage: &reason})
		if err != nil {
			return job.Job{}, err
		}
		if updated == nil {
			continue
		}

		s.monitor.TrackTransition(string(current.Status), string(job.StatusFailed))
		s.audit(ctx, actorID, "job.cancelled", id, nil)
		return *updated, nil
	}
	return job.Job{}, core_errors.ErrNotCancellable
}

// GenerationStatus is the derived per-event view combining job aggregates
// with per-ticket artifact presence.
type GenerationStatus struct {
	Jobs    job.Stats                  `json:"jobs"`
	Tickets ticket.GenerationBreakdown `json:"tickets"`
}

func (s *JobService) GenerationStatus(ctx context.Context, eventID uuid.UUID) (GenerationStatus, error) {
	stats, err := s.jobs.Stats(ctx, uuid.NullUUID{UUID: eventID, Valid: true})
	if err != nil {
		return GenerationStatus{}, err
	}
	breakdown, err := s.tickets.GenerationBreakdown(ctx, eventID)
	if err != nil {
		return GenerationStatus{}, err
	}
	return GenerationStatus{Jobs: stats, Tickets: breakdown}, nil
}

// TicketDownloadURL presigns a download link for a generated ticket file.
func (s *JobService) TicketDownloadURL(ctx context.Context, ticketID uuid.UUID) (string, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if t.Status != ticket.StatusGenerated || !t.TicketFilePath.Valid {
		return "", core_errors.ErrNotFound
	}
	if s.presigner == nil {
		// No bucket configured; fall back to the URL the generator reported.
		if t.TicketFileURL.Valid {
			return t.TicketFileURL.String, nil
		}
		return "", core_errors.ErrServiceUnavailable
	}
	return s.presigner.PresignGet(ctx, t.TicketFilePath.String)
}

func (s *JobService) audit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, detail map[string]interface{}) {
	var detailJSON []byte
	if detail != nil {
		detailJSON, _ = json.Marshal(detail)
	}
	entry := &audit.SystemLog{
		ID:        uuid.New(),
		ActorID:   uuid.NullUUID{UUID: actorID, Valid: actorID != uuid.Nil},
		Action:    action,
		Entity:    audit.EntityJob,
		EntityID:  uuid.NullUUID{UUID: entityID, Valid: true},
		Detail:    detailJSON,
		CreatedAt: time.Now(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log.Warnf("failed to write system log %s for %s: %v", action, entityID, err)
	}
}

// notify is fire-and-forget: delivery failures never fail the initiating
// operation.
func (s *JobService) notify(ctx context.Context, n clients.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.Warnf("notification %s not delivered: %v", n.Template, err)
	}
}

// newTicketCode mints a unique human-readable ticket code.
func newTicketCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "TKT-" + strings.ToUpper(uuid.NewString()[:12])
	}
	return "TKT-" + strings.ToUpper(hex.EncodeToString(buf))
}
