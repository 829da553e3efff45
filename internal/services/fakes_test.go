package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/audit"
	"event-planner-core/internal/domain/delivery"
	"event-planner-core/internal/domain/event"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/payment"
	"event-planner-core/internal/domain/ticket"
	"event-planner-core/internal/repository"
	core_errors "event-planner-core/pkg/errors"
)

// memStore is an in-memory stand-in for the repository layer with the same
// CAS and idempotency semantics as the SQL implementation.
type memStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*job.Job
	tickets     map[uuid.UUID]*ticket.Ticket
	deliveries  map[string]*delivery.WebhookDelivery
	payments    map[uuid.UUID]*payment.Payment
	events      map[uuid.UUID]event.Event
	ticketTypes map[uuid.UUID]event.TicketType
	eventGuests map[uuid.UUID]event.EventGuest
	logs        []audit.SystemLog
}

func newMemStore() *memStore {
	return &memStore{
		jobs:        map[uuid.UUID]*job.Job{},
		tickets:     map[uuid.UUID]*ticket.Ticket{},
		deliveries:  map[string]*delivery.WebhookDelivery{},
		payments:    map[uuid.UUID]*payment.Payment{},
		events:      map[uuid.UUID]event.Event{},
		ticketTypes: map[uuid.UUID]event.TicketType{},
		eventGuests: map[uuid.UUID]event.EventGuest{},
	}
}

// RunInTx satisfies repository.TxRunner. The fake has no transactional
// isolation; tests only rely on the CAS semantics.
func (m *memStore) RunInTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	return fn(nil)
}

// --- JobRepository ---

func (m *memStore) CreateWithTickets(_ context.Context, _ repository.DBTX, j *job.Job, tickets []ticket.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.jobs {
		if existing.CorrelationID == j.CorrelationID && !existing.Status.IsTerminal() {
			return core_errors.ErrConflict
		}
	}
	cp := *j
	m.jobs[j.ID] = &cp
	for i := range tickets {
		t := tickets[i]
		m.tickets[t.ID] = &t
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return job.Job{}, core_errors.ErrNotFound
	}
	return *j, nil
}

func (m *memStore) List(_ context.Context, filter repository.JobFilter) ([]job.Job, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []job.Job
	for _, j := range m.jobs {
		if filter.EventID.Valid && j.EventID != filter.EventID.UUID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, *j)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListFailed(_ context.Context, limit int) ([]job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []job.Job
	for _, j := range m.jobs {
		if j.Status == job.StatusFailed {
			out = append(out, *j)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ListByEvent(ctx context.Context, eventID uuid.UUID, filter repository.JobFilter) ([]job.Job, int64, error) {
	filter.EventID = uuid.NullUUID{UUID: eventID, Valid: true}
	return m.List(ctx, filter)
}

func (m *memStore) Stats(_ context.Context, eventID uuid.NullUUID) (job.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats job.Stats
	for _, j := range m.jobs {
		if eventID.Valid && j.EventID != eventID.UUID {
			continue
		}
		stats.Total++
		switch j.Status {
		case job.StatusPending:
			stats.Pending++
		case job.StatusProcessing:
			stats.Processing++
		case job.StatusCompleted:
			stats.Completed++
		case job.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *memStore) Transition(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to job.Status, fields repository.TransitionFields) (*job.Job, error) {
	if !job.CanTransition(from, to) {
		return nil, core_errors.ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != from {
		return nil, nil
	}

	now := time.Now()
	j.Status = to
	j.UpdatedAt = now
	switch {
	case from == job.StatusPending && to == job.StatusProcessing:
		j.StartedAt.Time, j.StartedAt.Valid = now, true
	case to == job.StatusCompleted:
		j.CompletedAt.Time, j.CompletedAt.Valid = now, true
		if fields.TicketsProcessed != nil {
			j.TicketsProcessed = *fields.TicketsProcessed
		}
		if fields.ErrorMessage != nil {
			j.ErrorMessage.String, j.ErrorMessage.Valid = *fields.ErrorMessage, true
		}
	case to == job.StatusFailed:
		j.CompletedAt.Time, j.CompletedAt.Valid = now, true
		if fields.ErrorMessage != nil {
			j.ErrorMessage.String, j.ErrorMessage.Valid = *fields.ErrorMessage, true
		}
	case from == job.StatusFailed && to == job.StatusPending:
		j.ErrorMessage.Valid = false
		j.ErrorMessage.String = ""
		j.StartedAt.Valid = false
		j.CompletedAt.Valid = false
		j.AttemptCount++
	}
	cp := *j
	return &cp, nil
}

// --- TicketRepository (as ticketStore view of memStore) ---

type ticketStore struct{ *memStore }

func (m ticketStore) GetByID(_ context.Context, id uuid.UUID) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return ticket.Ticket{}, core_errors.ErrNotFound
	}
	return *t, nil
}

func (m ticketStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ticket.Ticket
	for _, t := range m.tickets {
		if t.GenerationJobID.Valid && t.GenerationJobID.UUID == jobID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m ticketStore) ApplyOutcomes(_ context.Context, _ repository.DBTX, jobID uuid.UUID, outcomes []ticket.Outcome) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, out := range outcomes {
		t, ok := m.tickets[out.TicketID]
		if !ok || !t.GenerationJobID.Valid || t.GenerationJobID.UUID != jobID {
			continue
		}
		if out.Success {
			t.Status = ticket.StatusGenerated
			if !t.IsValidated {
				setNullable(&t.QRCodeData, out.QRCodeData)
				setNullable(&t.TicketFileURL, out.FileURL)
				setNullable(&t.TicketFilePath, out.FilePath)
			}
		} else {
			t.Status = ticket.StatusFailed
		}
		t.UpdatedAt = time.Now()
		changed++
	}
	return changed, nil
}

func (m ticketStore) GenerationBreakdown(_ context.Context, eventID uuid.UUID) (ticket.GenerationBreakdown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b ticket.GenerationBreakdown
	for _, t := range m.tickets {
		eg, ok := m.eventGuests[t.EventGuestID]
		if !ok || eg.EventID != eventID {
			continue
		}
		b.Total++
		switch t.Status {
		case ticket.StatusPending:
			b.Pending++
		case ticket.StatusGenerated:
			b.Generated++
		case ticket.StatusFailed:
			b.Failed++
		}
		if t.HasArtifacts() {
			b.WithArtifacts++
		}
		if t.IsValidated {
			b.Validated++
		}
	}
	return b, nil
}

func (m ticketStore) MarkValidated(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return core_errors.ErrNotFound
	}
	if t.IsValidated {
		return core_errors.ErrConflict
	}
	t.IsValidated = true
	return nil
}

// setNullable mirrors the SQL NULLIF guard: empty strings store as NULL.
func setNullable(dst *sql.NullString, v string) {
	dst.String = v
	dst.Valid = v != ""
}

// --- EventRepository ---

type eventStore struct{ *memStore }

func (m eventStore) GetEvent(_ context.Context, id uuid.UUID) (event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return event.Event{}, core_errors.ErrNotFound
	}
	return ev, nil
}

func (m eventStore) GetTicketType(_ context.Context, id uuid.UUID) (event.TicketType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tt, ok := m.ticketTypes[id]
	if !ok {
		return event.TicketType{}, core_errors.ErrNotFound
	}
	return tt, nil
}

func (m eventStore) GetEventGuests(_ context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]event.EventGuest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []event.EventGuest
	for _, id := range ids {
		eg, ok := m.eventGuests[id]
		if ok && eg.EventID == eventID {
			out = append(out, eg)
		}
	}
	return out, nil
}

// --- DeliveryRepository ---

type deliveryStore struct{ *memStore }

func (m deliveryStore) Insert(_ context.Context, d *delivery.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deliveries[d.DedupKey]; exists {
		return core_errors.ErrAlreadyExists
	}
	cp := *d
	m.deliveries[d.DedupKey] = &cp
	return nil
}

func (m deliveryStore) GetByDedupKey(_ context.Context, dedupKey string) (delivery.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deliveries[dedupKey]
	if !ok {
		return delivery.WebhookDelivery{}, core_errors.ErrNotFound
	}
	return *d, nil
}

func (m deliveryStore) Reclaim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.deliveries {
		if d.ID == id && d.Outcome == delivery.OutcomeError {
			d.Outcome = delivery.OutcomeInProgress
			return nil
		}
	}
	return core_errors.ErrConflict
}

func (m deliveryStore) SetOutcome(_ context.Context, _ repository.DBTX, id uuid.UUID, outcome delivery.Outcome, receipt []byte, processingTimeMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.deliveries {
		if d.ID == id {
			d.Outcome = outcome
			d.Receipt = receipt
			d.ProcessingTimeMs = processingTimeMs
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return core_errors.ErrNotFound
}

func (m deliveryStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]delivery.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []delivery.WebhookDelivery
	for _, d := range m.deliveries {
		if d.JobID == jobID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- PaymentRepository ---

type paymentStore struct{ *memStore }

func (m paymentStore) Create(_ context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.payments {
		if existing.PaymentIntentID == p.PaymentIntentID {
			return core_errors.ErrAlreadyExists
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m paymentStore) GetByIntentID(_ context.Context, intentID string) (payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.PaymentIntentID == intentID {
			return *p, nil
		}
	}
	return payment.Payment{}, core_errors.ErrNotFound
}

func (m paymentStore) Transition(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to payment.Status, failureReason *string) (*payment.Payment, error) {
	if !payment.CanTransition(from, to) {
		return nil, core_errors.ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok || p.Status != from {
		return nil, nil
	}
	p.Status = to
	if failureReason != nil {
		p.FailureReason.String, p.FailureReason.Valid = *failureReason, true
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

// --- SystemLogRepository ---

type logStore struct{ *memStore }

func (m logStore) Create(_ context.Context, entry *audit.SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m logStore) ListByEntity(_ context.Context, entity string, entityID uuid.UUID) ([]audit.SystemLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.SystemLog
	for _, e := range m.logs {
		if e.Entity == entity && e.EntityID.Valid && e.EntityID.UUID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// enqueuerFake records enqueued job ids.
type enqueuerFake struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (e *enqueuerFake) Enqueue(jobID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, jobID)
}

func (e *enqueuerFake) enqueued() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uuid.UUID, len(e.ids))
	copy(out, e.ids)
	return out
}
