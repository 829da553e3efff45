package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/delivery"
	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/ticket"
	"event-planner-core/internal/monitoring"
	"event-planner-core/internal/repository"
	"event-planner-core/internal/webhook"
	core_errors "event-planner-core/pkg/errors"
	"event-planner-core/pkg/logger"
)

// Receipt is the acknowledgment body returned to the webhook sender and
// stored on the delivery row for replays.
type Receipt struct {
	JobID            uuid.UUID `json:"job_id"`
	EventType        string    `json:"event_type"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	TicketsUpdated   int       `json:"tickets_updated"`
	TicketsReceived  int       `json:"tickets_received"`
	Outcome          string    `json:"outcome,omitempty"`
}

// ReconcileService consumes generator webhooks and reconciles job and ticket
// state. Every delivery is processed at most once: the dedup key claims a
// ledger row before any state is touched, and replays answer with the stored
// receipt.
type ReconcileService struct {
	jobs       repository.JobRepository
	tickets    repository.TicketRepository
	deliveries repository.DeliveryRepository
	tx         repository.TxRunner
	secret     []byte
	monitor    *monitoring.Monitor
	log        *logger.Logger
}

func NewReconcileService(
	jobs repository.JobRepository,
	tickets repository.TicketRepository,
	deliveries repository.DeliveryRepository,
	tx repository.TxRunner,
	secret []byte,
	monitor *monitoring.Monitor,
	log *logger.Logger,
) *ReconcileService {
	return &ReconcileService{
		jobs:       jobs,
		tickets:    tickets,
		deliveries: deliveries,
		tx:         tx,
		secret:     secret,
		monitor:    monitor,
		log:        log,
	}
}

// Process runs the full reconciliation pipeline over a raw webhook request:
// verify, normalize, deduplicate, apply, acknowledge. Signature failures
// write nothing.
func (s *ReconcileService) Process(ctx context.Context, body []byte, signature string) (Receipt, error) {
	start := time.Now()

	if err := webhook.VerifySignature(s.secret, body, signature); err != nil {
		s.monitor.TrackSignatureFailure()
		return Receipt{}, err
	}

	p, err := webhook.Normalize(body)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", core_errors.ErrInvalidInput, err)
	}

	dedupKey, err := p.DedupKey()
	if err != nil {
		return Receipt{}, err
	}
	canonical, err := p.CanonicalJSON()
	if err != nil {
		return Receipt{}, err
	}

	row := &delivery.WebhookDelivery{
		ID:             uuid.New(),
		JobID:          p.JobID,
		EventType:      p.EventType,
		DedupKey:       dedupKey,
		SignatureOK:    true,
		NormalizedBody: canonical,
		Outcome:        delivery.OutcomeInProgress,
		ReceivedAt:     time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.deliveries.Insert(ctx, row); err != nil {
		if !errors.Is(err, core_errors.ErrAlreadyExists) {
			return Receipt{}, err
		}
		return s.replay(ctx, dedupKey, row)
	}

	return s.apply(ctx, row, p, start)
}

// replay answers a duplicate delivery. A settled delivery returns its stored
// receipt; an in-flight one tells the sender to retry later; an errored one
// is reclaimed and reprocessed.
func (s *ReconcileService) replay(ctx context.Context, dedupKey string, fresh *delivery.WebhookDelivery) (Receipt, error) {
	prior, err := s.deliveries.GetByDedupKey(ctx, dedupKey)
	if err != nil {
		return Receipt{}, err
	}

	switch prior.Outcome {
	case delivery.OutcomeInProgress:
		return Receipt{}, core_errors.ErrDeliveryInProgress
	case delivery.OutcomeError:
		if err := s.deliveries.Reclaim(ctx, prior.ID); err != nil {
			// Someone else reclaimed it first.
			return Receipt{}, core_errors.ErrDeliveryInProgress
		}
		fresh.ID = prior.ID
		var p webhook.Payload
		if err := json.Unmarshal(prior.NormalizedBody, &p); err != nil {
			return Receipt{}, err
		}
		return s.apply(ctx, fresh, &p, time.Now())
	default:
		var receipt Receipt
		if err := json.Unmarshal(prior.Receipt, &receipt); err != nil {
			return Receipt{}, err
		}
		s.monitor.TrackDelivery(prior.EventType, "replayed")
		return receipt, nil
	}
}

// apply runs step four of the pipeline: one transaction covering the job
// transition, the per-ticket outcomes, and the delivery settlement.
func (s *ReconcileService) apply(ctx context.Context, row *delivery.WebhookDelivery, p *webhook.Payload, start time.Time) (Receipt, error) {
	receipt := Receipt{
		JobID:           p.JobID,
		EventType:       p.EventType,
		TicketsReceived: len(p.Tickets),
	}

	if !webhook.KnownEventType(p.EventType) {
		receipt.ProcessingTimeMs = time.Since(start).Milliseconds()
		receipt.Outcome = string(delivery.OutcomeIgnored)
		return s.settle(ctx, nil, row, delivery.OutcomeIgnored, receipt)
	}

	if _, err := s.jobs.GetByID(ctx, p.JobID); err != nil {
		if errors.Is(err, core_errors.ErrNotFound) {
			s.settleError(ctx, row, start)
		}
		return Receipt{}, err
	}

	outcome := delivery.OutcomeOK
	var settled Receipt
	txErr := s.tx.RunInTx(ctx, func(tx repository.DBTX) error {
		transitioned, err := s.transitionFor(ctx, tx, p)
		if err != nil {
			return err
		}
		if !transitioned {
			// Late event: the job already left processing. Artifacts still
			// land, status stays put.
			outcome = delivery.OutcomeAppliedLate
		} else {
			s.monitor.TrackTransition(string(job.StatusProcessing), terminalStatusFor(p.EventType))
		}

		updated, err := s.tickets.ApplyOutcomes(ctx, tx, p.JobID, ticketOutcomes(p))
		if err != nil {
			return err
		}
		receipt.TicketsUpdated = updated
		receipt.ProcessingTimeMs = time.Since(start).Milliseconds()
		if outcome == delivery.OutcomeAppliedLate {
			receipt.Outcome = string(delivery.OutcomeAppliedLate)
		}

		r, err := s.settle(ctx, tx, row, outcome, receipt)
		settled = r
		return err
	})
	if txErr != nil {
		s.settleError(ctx, row, start)
		s.log.Errorf("reconcile of job %s (%s) failed: %v", p.JobID, p.EventType, txErr)
		return Receipt{}, txErr
	}

	s.monitor.TrackDelivery(p.EventType, string(outcome))
	s.monitor.TrackReconcile(p.EventType, time.Since(start))
	s.log.Infof("reconciled job %s: %s -> %s (%d/%d tickets)",
		p.JobID, p.EventType, outcome, receipt.TicketsUpdated, receipt.TicketsReceived)
	return settled, nil
}

// transitionFor performs the job-status CAS appropriate for the event type.
// Returns false when the CAS precondition no longer holds (late event).
func (s *ReconcileService) transitionFor(ctx context.Context, tx repository.DBTX, p *webhook.Payload) (bool, error) {
	var (
		updated *job.Job
		err     error
	)

	switch p.EventType {
	case webhook.EventTicketCompleted:
		processed := p.Summary.Successful
		updated, err = s.jobs.Transition(ctx, tx, p.JobID, job.StatusProcessing, job.StatusCompleted,
			repository.TransitionFields{TicketsProcessed: &processed})

	case webhook.EventTicketFailed:
		msg := p.Error
		if msg == "" {
			msg = "generation failed"
		}
		updated, err = s.jobs.Transition(ctx, tx, p.JobID, job.StatusProcessing, job.StatusFailed,
			repository.TransitionFields{ErrorMessage: &msg})

	case webhook.EventTicketPartial:
		// Partial success is still terminal completion; the shortfall is
		// recorded on the job.
		processed := p.Summary.Successful
		msg := fmt.Sprintf("%d tickets échoués sur %d", p.Summary.Failed, p.Summary.Total)
		updated, err = s.jobs.Transition(ctx, tx, p.JobID, job.StatusProcessing, job.StatusCompleted,
			repository.TransitionFields{TicketsProcessed: &processed, ErrorMessage: &msg})
	}

	if err != nil {
		return false, err
	}
	return updated != nil, nil
}

// ticketOutcomes maps the canonical payload to store-level outcomes. For a
// ticket.failed event every ticket is marked failed regardless of per-ticket
// flags; artifact fields are never written on that path.
func ticketOutcomes(p *webhook.Payload) []ticket.Outcome {
	outcomes := make([]ticket.Outcome, 0, len(p.Tickets))
	for _, t := range p.Tickets {
		out := ticket.Outcome{
			TicketID:   t.TicketID,
			TicketCode: t.TicketCode,
			Success:    t.Success && p.EventType != webhook.EventTicketFailed,
		}
		if out.Success {
			out.QRCodeData = t.QRCodeData
			out.FileURL = t.FileURL
			out.FilePath = t.FilePath
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func terminalStatusFor(eventType string) string {
	if eventType == webhook.EventTicketFailed {
		return string(job.StatusFailed)
	}
	return string(job.StatusCompleted)
}

func (s *ReconcileService) settle(ctx context.Context, tx repository.DBTX, row *delivery.WebhookDelivery, outcome delivery.Outcome, receipt Receipt) (Receipt, error) {
	encoded, err := json.Marshal(receipt)
	if err != nil {
		return Receipt{}, err
	}
	if err := s.deliveries.SetOutcome(ctx, tx, row.ID, outcome, encoded, receipt.ProcessingTimeMs); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// settleError marks the delivery errored outside the rolled-back transaction
// so a sender retry can reclaim it.
func (s *ReconcileService) settleError(ctx context.Context, row *delivery.WebhookDelivery, start time.Time) {
	if err := s.deliveries.SetOutcome(ctx, nil, row.ID, delivery.OutcomeError, nil, time.Since(start).Milliseconds()); err != nil {
		s.log.Errorf("failed to mark delivery %s errored: %v", row.ID, err)
	}
	s.monitor.TrackDelivery(row.EventType, string(delivery.OutcomeError))
}
