package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/ticket"
	core_errors "event-planner-core/pkg/errors"
)

func TestCreateJobPersistsJobAndTickets(t *testing.T) {
	f := newFixture(t, 2)

	j := f.createJob(t)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, 2, j.TicketsTotal)
	assert.Equal(t, 1, j.AttemptCount)
	assert.NotEqual(t, uuid.Nil, j.CorrelationID)

	rows := f.jobTickets(t, j.ID)
	require.Len(t, rows, 2)
	codes := map[string]struct{}{}
	for _, tk := range rows {
		assert.Equal(t, ticket.StatusPending, tk.Status)
		assert.False(t, tk.HasArtifacts())
		assert.NotEmpty(t, tk.TicketCode)
		codes[tk.TicketCode] = struct{}{}
	}
	assert.Len(t, codes, 2)

	assert.Equal(t, []uuid.UUID{j.ID}, f.enqueuer.enqueued())
	require.Len(t, f.store.logs, 1)
	assert.Equal(t, "job.created", f.store.logs[0].Action)
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	t.Run("empty guest list", func(t *testing.T) {
		_, err := f.jobs.Create(ctx, CreateJobInput{
			EventID:      f.eventID,
			TicketTypeID: f.typeID,
			CreatedBy:    f.userID,
		})
		assert.ErrorIs(t, err, core_errors.ErrInvalidInput)
	})

	t.Run("duplicate guest ids", func(t *testing.T) {
		_, err := f.jobs.Create(ctx, CreateJobInput{
			EventID:       f.eventID,
			TicketTypeID:  f.typeID,
			EventGuestIDs: []uuid.UUID{f.guestIDs[0], f.guestIDs[0]},
			CreatedBy:     f.userID,
		})
		assert.ErrorIs(t, err, core_errors.ErrInvalidInput)
	})

	t.Run("guest of another event", func(t *testing.T) {
		_, err := f.jobs.Create(ctx, CreateJobInput{
			EventID:       f.eventID,
			TicketTypeID:  f.typeID,
			EventGuestIDs: []uuid.UUID{f.guestIDs[0], uuid.New()},
			CreatedBy:     f.userID,
		})
		assert.ErrorIs(t, err, core_errors.ErrInvalidInput)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.jobs.Create(ctx, CreateJobInput{
			EventID:       uuid.New(),
			TicketTypeID:  f.typeID,
			EventGuestIDs: f.guestIDs,
			CreatedBy:     f.userID,
		})
		assert.ErrorIs(t, err, core_errors.ErrNotFound)
	})

	t.Run("ticket type of another event", func(t *testing.T) {
		other := newFixture(t, 1)
		_, err := f.jobs.Create(ctx, CreateJobInput{
			EventID:       f.eventID,
			TicketTypeID:  other.typeID,
			EventGuestIDs: f.guestIDs,
			CreatedBy:     f.userID,
		})
		assert.ErrorIs(t, err, core_errors.ErrNotFound)
	})
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createJob(t)

	_, err := f.jobs.Retry(context.Background(), j.ID, f.userID)
	assert.ErrorIs(t, err, core_errors.ErrNotRetryable)
}

func TestCancelThenRetryConflicts(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createJob(t)

	cancelled, err := f.jobs.Cancel(context.Background(), j.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, cancelled.Status)
	assert.Equal(t, "cancelled by user", cancelled.ErrorMessage.String)

	// A cancelled job is failed, so retry is allowed and resets the run.
	retried, err := f.jobs.Retry(context.Background(), j.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, retried.Status)
	assert.Equal(t, 2, retried.AttemptCount)
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	_, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	_, err = f.jobs.Cancel(context.Background(), j.ID, f.userID)
	assert.ErrorIs(t, err, core_errors.ErrNotCancellable)
}

func TestCreateJobDuplicateCorrelationConflicts(t *testing.T) {
	f := newFixture(t, 1)
	j := f.createJob(t)

	// Force a second job with the same correlation id while the first is
	// still pending.
	dup := j
	dup.ID = uuid.New()
	err := f.store.CreateWithTickets(context.Background(), nil, &dup, nil)
	assert.ErrorIs(t, err, core_errors.ErrConflict)
}

func TestGenerationStatusCombinesJobsAndTickets(t *testing.T) {
	f := newFixture(t, 2)
	j := f.createProcessingJob(t)
	tickets := f.jobTickets(t, j.ID)

	body, sig := completedBody(t, j.ID, tickets)
	_, err := f.reconcile.Process(context.Background(), body, sig)
	require.NoError(t, err)

	status, err := f.jobs.GenerationStatus(context.Background(), f.eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Jobs.Total)
	assert.Equal(t, int64(1), status.Jobs.Completed)
	assert.Equal(t, int64(2), status.Tickets.Total)
	assert.Equal(t, int64(2), status.Tickets.Generated)
	assert.Equal(t, int64(2), status.Tickets.WithArtifacts)
}
