package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/monitoring"
	"event-planner-core/internal/repository"
	"event-planner-core/pkg/logger"
)

const (
	dispatchBackoffBase = 1 * time.Second
	dispatchBackoffCap  = 60 * time.Second
	dispatchMaxAttempts = 5
)

// DispatchService hands pending jobs to the ticket generator. It owns the
// pending -> processing edge; the reconciler owns the rest of the lifecycle.
// The transport is pluggable: an HTTP client or a queue publisher, both
// behind clients.GeneratorClient.
type DispatchService struct {
	jobs        repository.JobRepository
	tickets     repository.TicketRepository
	generator   clients.GeneratorClient
	callbackURL string
	monitor     *monitoring.Monitor
	log         *logger.Logger

	interval  time.Duration
	backoffFn func(attempt int) time.Duration
	queue     chan uuid.UUID
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewDispatchService(
	jobs repository.JobRepository,
	tickets repository.TicketRepository,
	generator clients.GeneratorClient,
	callbackURL string,
	monitor *monitoring.Monitor,
	log *logger.Logger,
) *DispatchService {
	return &DispatchService{
		jobs:        jobs,
		tickets:     tickets,
		generator:   generator,
		callbackURL: callbackURL,
		monitor:     monitor,
		log:         log,
		interval:    5 * time.Second,
		backoffFn:   backoff,
		queue:       make(chan uuid.UUID, 256),
		stopChan:    make(chan struct{}),
	}
}

// Start begins the worker loop.
func (s *DispatchService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop gracefully shuts down.
func (s *DispatchService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// Enqueue requests immediate dispatch of a job. When the buffer is full the
// periodic sweep picks the job up instead.
func (s *DispatchService) Enqueue(jobID uuid.UUID) {
	select {
	case s.queue <- jobID:
	default:
		s.log.Warnf("dispatch queue full, job %s deferred to sweep", jobID)
	}
}

func (s *DispatchService) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case jobID := <-s.queue:
			s.dispatch(context.Background(), jobID)
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep picks up pending jobs that were enqueued before a restart or dropped
// from the buffer. State lives in the database, so nothing is lost.
func (s *DispatchService) sweep() {
	ctx := context.Background()
	pending, _, err := s.jobs.List(ctx, repository.JobFilter{Status: job.StatusPending, Limit: 50})
	if err != nil {
		s.log.Errorf("dispatch sweep failed: %v", err)
		return
	}
	for _, j := range pending {
		select {
		case <-s.stopChan:
			return
		default:
		}
		s.dispatch(ctx, j.ID)
	}
}

func (s *DispatchService) dispatch(ctx context.Context, jobID uuid.UUID) {
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		s.log.Errorf("dispatch: load job %s: %v", jobID, err)
		return
	}
	if j.Status != job.StatusPending {
		return
	}

	claimed, err := s.jobs.Transition(ctx, nil, jobID, job.StatusPending, job.StatusProcessing, repository.TransitionFields{})
	if err != nil {
		s.log.Errorf("dispatch: claim job %s: %v", jobID, err)
		return
	}
	if claimed == nil {
		// Another worker won the CAS.
		return
	}
	s.monitor.TrackTransition(string(job.StatusPending), string(job.StatusProcessing))

	envelope, err := s.buildEnvelope(ctx, claimed)
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("dispatch envelope: %v", err))
		return
	}

	s.deliver(ctx, jobID, envelope)
}

func (s *DispatchService) buildEnvelope(ctx context.Context, j *job.Job) (clients.DispatchEnvelope, error) {
	rows, err := s.tickets.ListByJob(ctx, j.ID)
	if err != nil {
		return clients.DispatchEnvelope{}, err
	}
	if len(rows) == 0 {
		return clients.DispatchEnvelope{}, errors.New("job has no ticket rows")
	}

	lines := make([]clients.DispatchTicket, 0, len(rows))
	for _, t := range rows {
		line := clients.DispatchTicket{
			TicketID:     t.ID,
			EventGuestID: t.EventGuestID,
			TicketTypeID: t.TicketTypeID,
		}
		if t.TicketTemplateID.Valid {
			id := t.TicketTemplateID.UUID.String()
			line.TemplateID = &id
		}
		lines = append(lines, line)
	}

	return clients.DispatchEnvelope{
		CorrelationID: j.CorrelationID.String(),
		JobID:         j.ID,
		EventID:       j.EventID,
		Tickets:       lines,
		CallbackURL:   s.callbackURL,
	}, nil
}

// deliver attempts the handoff with exponential backoff. A non-retryable
// rejection fails the job; exhausting retries leaves it processing, because
// the generator may have accepted an earlier attempt and a webhook can still
// arrive.
func (s *DispatchService) deliver(ctx context.Context, jobID uuid.UUID, envelope clients.DispatchEnvelope) {
	for attempt := 1; attempt <= dispatchMaxAttempts; attempt++ {
		start := time.Now()
		err := s.generator.Dispatch(ctx, envelope)
		if err == nil {
			s.monitor.TrackDispatch("ok", time.Since(start))
			s.log.Infof("job %s dispatched (attempt %d)", jobID, attempt)
			return
		}

		var dispatchErr *clients.DispatchError
		if errors.As(err, &dispatchErr) && !dispatchErr.Retryable() {
			s.monitor.TrackDispatch("rejected", time.Since(start))
			s.fail(ctx, jobID, fmt.Sprintf("generator rejected dispatch: %s", dispatchErr.Error()))
			return
		}

		s.monitor.TrackDispatch("retry", time.Since(start))
		if attempt == dispatchMaxAttempts {
			break
		}
		wait := s.backoffFn(attempt)
		s.log.Warnf("dispatch of job %s failed (attempt %d/%d), retrying in %s: %v",
			jobID, attempt, dispatchMaxAttempts, wait, err)
		select {
		case <-s.stopChan:
			return
		case <-time.After(wait):
		}
	}
	s.log.Errorf("dispatch of job %s gave up after %d attempts; awaiting webhook or manual retry",
		jobID, dispatchMaxAttempts)
}

func (s *DispatchService) fail(ctx context.Context, jobID uuid.UUID, reason string) {
	updated, err := s.jobs.Transition(ctx, nil, jobID, job.StatusProcessing, job.StatusFailed,
		repository.TransitionFields{ErrorMessage: &reason})
	if err != nil {
		s.log.Errorf("dispatch: fail job %s: %v", jobID, err)
		return
	}
	if updated != nil {
		s.monitor.TrackTransition(string(job.StatusProcessing), string(job.StatusFailed))
	}
}

// backoff is exponential with base 1s, factor 2, cap 60s and +-20% jitter.
func backoff(attempt int) time.Duration {
	d := dispatchBackoffBase << uint(attempt-1)
	if d > dispatchBackoffCap {
		d = dispatchBackoffCap
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * jitter)
}
