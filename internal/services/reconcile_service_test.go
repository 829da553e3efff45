package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/domain/delivery"
	"event-planner-core/internal/domain/event"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/ticket"
	"event-planner-core/internal/monitoring"
	"event-planner-core/internal/webhook"
	core_errors "event-planner-core/pkg/errors"
	"event-planner-core/pkg/logger"
)

var testSecret = []byte("test-webhook-secret")

// fixture wires the full job pipeline over the in-memory store: job service
// for creation, dispatch service for the pending -> processing edge, and the
// reconciler for webhooks.
type fixture struct {
	store     *memStore
	jobs      *JobService
	dispatch  *DispatchService
	reconcile *ReconcileService
	generator *clients.GeneratorMock
	enqueuer  *enqueuerFake
	eventID   uuid.UUID
	typeID    uuid.UUID
	guestIDs  []uuid.UUID
	userID    uuid.UUID
}

func newFixture(t *testing.T, guestCount int) *fixture {
	t.Helper()

	store := newMemStore()
	log := logger.New(logger.DevelopmentMode)
	monitor := monitoring.NewMonitor()

	eventID := uuid.New()
	store.events[eventID] = event.Event{
		ID:        eventID,
		Title:     "Launch party",
		Status:    event.StatusPublished,
		EventDate: time.Now().Add(48 * time.Hour),
	}
	typeID := uuid.New()
	store.ticketTypes[typeID] = event.TicketType{
		ID:      typeID,
		EventID: eventID,
		Name:    "Standard",
		Kind:    event.TicketTypeFree,
	}
	guestIDs := make([]uuid.UUID, 0, guestCount)
	for i := 0; i < guestCount; i++ {
		id := uuid.New()
		store.eventGuests[id] = event.EventGuest{ID: id, EventID: eventID, GuestID: uuid.New()}
		guestIDs = append(guestIDs, id)
	}

	generator := &clients.GeneratorMock{}
	enqueuer := &enqueuerFake{}
	notifier := &clients.NotificationMock{}

	jobs := NewJobService(store, ticketStore{store}, eventStore{store}, deliveryStore{store},
		logStore{store}, store, notifier, enqueuer, nil, monitor, log)
	dispatch := NewDispatchService(store, ticketStore{store}, generator,
		"http://core.local/api/internal/ticket-generation-webhook", monitor, log)
	reconcile := NewReconcileService(store, ticketStore{store}, deliveryStore{store},
		store, testSecret, monitor, log)

	return &fixture{
		store:     store,
		jobs:      jobs,
		dispatch:  dispatch,
		reconcile: reconcile,
		generator: generator,
		enqueuer:  enqueuer,
		eventID:   eventID,
		typeID:    typeID,
		guestIDs:  guestIDs,
		userID:    uuid.New(),
	}
}

func (f *fixture) createJob(t *testing.T) job.Job {
	t.Helper()
	j, err := f.jobs.Create(context.Background(), CreateJobInput{
		EventID:       f.eventID,
		TicketTypeID:  f.typeID,
		EventGuestIDs: f.guestIDs,
		CreatedBy:     f.userID,
	})
	require.NoError(t, err)
	return j
}

// createProcessingJob creates a job and runs the dispatcher so it lands in
// processing with the envelope handed to the generator mock.
func (f *fixture) createProcessingJob(t *testing.T) job.Job {
	t.Helper()
	j := f.createJob(t)
	f.dispatch.dispatch(context.Background(), j.ID)
	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusProcessing, current.Status)
	return current
}

func (f *fixture) jobTickets(t *testing.T, jobID uuid.UUID) []ticket.Ticket {
	t.Helper()
	rows, err := ticketStore{f.store}.ListByJob(context.Background(), jobID)
	require.NoError(t, err)
	return rows
}

func signedBody(t *testing.T, payload interface{}) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body, webhook.Sign(testSecret, body)
}

func completedBody(t *testing.T, jobID uuid.UUID, tickets []ticket.Ticket) ([]byte, string) {
	t.Helper()
	lines := make([]map[string]interface{}, 0, len(tickets))
	for i, tk := range tickets {
		lines = append(lines, map[string]interface{}{
			"ticket_id":    tk.ID.String(),
			"qr_code_data": fmt.Sprintf("QR%d", i+1),
			"file_url":     fmt.Sprintf("u%d", i+1),
			"file_path":    fmt.Sprintf("p%d", i+1),
		})
	}
	return signedBody(t, map[string]interface{}{
		"job_id":  jobID.String(),
		"status":  "completed",
		"tickets": lines,
		"summary": map[string]int{"total": len(tickets), "successful": len(tickets), "failed": 0},
	})
}

func TestReconcileCompletedHappyPath(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, ticket.StatusPending, tk.Status)
	}

	body, sig := completedBody(t, j.ID, tickets)
	receipt, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	assert.Equal(t, j.ID, receipt.JobID)
	assert.Equal(t, webhook.EventTicketCompleted, receipt.EventType)
	assert.Equal(t, 2, receipt.TicketsUpdated)
	assert.Equal(t, 2, receipt.TicketsReceived)

	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, current.Status)
	assert.Equal(t, 2, current.TicketsProcessed)
	assert.True(t, current.CompletedAt.Valid)

	for _, tk := range f.jobTickets(t, j.ID) {
		assert.Equal(t, ticket.StatusGenerated, tk.Status)
		assert.True(t, tk.HasArtifacts())
	}
}

func TestReconcilePartial(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)
	require.Len(t, tickets, 2)

	body, sig := signedBody(t, map[string]interface{}{
		"job_id": j.ID.String(),
		"status": "partial",
		"tickets": []map[string]interface{}{
			{
				"ticket_id":    tickets[0].ID.String(),
				"success":      true,
				"qr_code_data": "QR1",
				"file_url":     "u1",
				"file_path":    "p1",
			},
			{"ticket_id": tickets[1].ID.String(), "success": false},
		},
		"summary": map[string]int{"total": 2, "successful": 1, "failed": 1},
	})

	receipt, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.TicketsUpdated)

	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, current.Status)
	assert.Equal(t, 1, current.TicketsProcessed)
	require.True(t, current.ErrorMessage.Valid)
	assert.Equal(t, "1 tickets échoués sur 2", current.ErrorMessage.String)

	byID := map[uuid.UUID]ticket.Ticket{}
	for _, tk := range f.jobTickets(t, j.ID) {
		byID[tk.ID] = tk
	}
	assert.Equal(t, ticket.StatusGenerated, byID[tickets[0].ID].Status)
	assert.True(t, byID[tickets[0].ID].HasArtifacts())
	assert.Equal(t, ticket.StatusFailed, byID[tickets[1].ID].Status)
	assert.False(t, byID[tickets[1].ID].HasArtifacts())
}

func TestReconcileDuplicateDelivery(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	first, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	snapshot := f.jobTickets(t, j.ID)

	second, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.ElementsMatch(t, snapshot, f.jobTickets(t, j.ID))
	assert.Len(t, f.store.deliveries, 1)
}

func TestReconcileBadSignature(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	tampered := append([]byte{}, body...)
	tampered[10] ^= 0x01

	_, err := f.reconcile.Process(context.Background(), tampered, sig)
	assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)

	// No writes of any kind.
	assert.Empty(t, f.store.deliveries)
	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusProcessing, current.Status)

	_, err = f.reconcile.Process(context.Background(), body, "")
	assert.ErrorIs(t, err, core_errors.ErrMissingSignature)
}

func TestReconcileLateWebhookAfterCancel(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	cancelled, err := f.jobs.Cancel(context.Background(), j.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, cancelled.Status)
	assert.Equal(t, "cancelled by user", cancelled.ErrorMessage.String)

	body, sig := completedBody(t, j.ID, tickets)
	receipt, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, string(delivery.OutcomeAppliedLate), receipt.Outcome)

	// Artifacts land, status stays failed.
	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, current.Status)
	for _, tk := range f.jobTickets(t, j.ID) {
		assert.True(t, tk.HasArtifacts())
	}

	for _, d := range f.store.deliveries {
		assert.Equal(t, delivery.OutcomeAppliedLate, d.Outcome)
	}
}

func TestReconcileRetryAfterFailure(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := signedBody(t, map[string]interface{}{
		"job_id": j.ID.String(),
		"status": "failed",
		"error":  "renderer crashed",
		"tickets": []map[string]interface{}{
			{"ticket_id": tickets[0].ID.String(), "success": false},
			{"ticket_id": tickets[1].ID.String(), "success": false},
		},
		"summary": map[string]int{"total": 2, "successful": 0, "failed": 2},
	})
	_, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	failed, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, failed.Status)
	assert.Equal(t, "renderer crashed", failed.ErrorMessage.String)

	retried, err := f.jobs.Retry(context.Background(), j.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, retried.Status)
	assert.Equal(t, 2, retried.AttemptCount)
	assert.False(t, retried.ErrorMessage.Valid)
	assert.False(t, retried.StartedAt.Valid)
	assert.Contains(t, f.enqueuer.enqueued(), j.ID)

	// The retried run completes normally.
	f.dispatch.dispatch(context.Background(), j.ID)
	body2, sig2 := completedBody(t, j.ID, tickets)
	_, err = f.reconcile.Process(context.Background(), body2, sig2)
	require.NoError(t, err)

	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, current.Status)
}

func TestReconcileValidatedTicketArtifactsImmutable(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	_, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	require.NoError(t, ticketStore{f.store}.MarkValidated(context.Background(), tickets[0].ID))
	validated, err := ticketStore{f.store}.GetByID(context.Background(), tickets[0].ID)
	require.NoError(t, err)
	priorQR := validated.QRCodeData.String

	// A later partial delivery tries to overwrite the validated ticket.
	body2, sig2 := signedBody(t, map[string]interface{}{
		"job_id": j.ID.String(),
		"status": "partial",
		"tickets": []map[string]interface{}{
			{
				"ticket_id":    tickets[0].ID.String(),
				"success":      true,
				"qr_code_data": "OVERWRITTEN",
				"file_url":     "other",
				"file_path":    "other",
			},
		},
		"summary": map[string]int{"total": 1, "successful": 1, "failed": 0},
	})
	_, err = f.reconcile.Process(context.Background(), body2, sig2)
	require.NoError(t, err)

	after, err := ticketStore{f.store}.GetByID(context.Background(), tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, priorQR, after.QRCodeData.String)
}

func TestReconcileUnknownEventTypeIgnored(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createProcessingJob(t)

	body, sig := signedBody(t, map[string]interface{}{
		"job_id":     j.ID.String(),
		"event_type": "ticket.archived",
		"status":     "archived",
	})
	receipt, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, string(delivery.OutcomeIgnored), receipt.Outcome)
	assert.Zero(t, receipt.TicketsUpdated)

	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusProcessing, current.Status)
}

func TestReconcileInProgressConflict(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	p, err := webhook.Normalize(body)
	require.NoError(t, err)
	key, err := p.DedupKey()
	require.NoError(t, err)
	canonical, err := p.CanonicalJSON()
	require.NoError(t, err)

	// Simulate a delivery claimed by a concurrent worker.
	require.NoError(t, deliveryStore{f.store}.Insert(context.Background(), &delivery.WebhookDelivery{
		ID:             uuid.New(),
		JobID:          j.ID,
		EventType:      p.EventType,
		DedupKey:       key,
		SignatureOK:    true,
		NormalizedBody: canonical,
		Outcome:        delivery.OutcomeInProgress,
		ReceivedAt:     time.Now(),
		UpdatedAt:      time.Now(),
	}))

	_, err = f.reconcile.Process(context.Background(), body, sig)
	assert.ErrorIs(t, err, core_errors.ErrDeliveryInProgress)
}

func TestReconcileShapeBPayload(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := signedBody(t, map[string]interface{}{
		"eventType": "ticket.completed",
		"jobId":     j.ID.String(),
		"status":    "completed",
		"data": map[string]interface{}{
			"tickets": []map[string]interface{}{
				{
					"ticketId":   tickets[0].ID.String(),
					"qrCodeData": "QR1",
					"fileUrl":    "u1",
					"filePath":   "p1",
				},
			},
			"summary":        map[string]int{"total": 1, "successful": 1, "failed": 0},
			"processingTime": 1234,
		},
	})
	receipt, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.TicketsUpdated)

	current, err := f.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, current.Status)
	for _, tk := range f.jobTickets(t, j.ID) {
		assert.True(t, tk.HasArtifacts())
	}
}
