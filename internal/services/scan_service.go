package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"event-planner-core/internal/clients"
	"event-planner-core/internal/domain/event"
	"event-planner-core/internal/domain/ticket"
	"event-planner-core/internal/repository"
	core_errors "event-planner-core/pkg/errors"
	"event-planner-core/pkg/logger"
)

// ScanService bridges the Scan-Validation service and the ticket table.
// Scan decisions are made remotely; this service only runs the local business
// checks and flips is_validated once.
type ScanService struct {
	tickets repository.TicketRepository
	events  repository.EventRepository
	scan    clients.ScanClient
	log     *logger.Logger
}

func NewScanService(tickets repository.TicketRepository, events repository.EventRepository, scan clients.ScanClient, log *logger.Logger) *ScanService {
	return &ScanService{tickets: tickets, events: events, scan: scan, log: log}
}

// Validate marks a ticket validated after local checks: the ticket must be
// generated, not yet validated, and belong to a live event.
func (s *ScanService) Validate(ctx context.Context, ticketID uuid.UUID, eventID uuid.UUID) (ticket.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if t.Status != ticket.StatusGenerated || !t.HasArtifacts() {
		return ticket.Ticket{}, fmt.Errorf("%w: ticket is not generated", core_errors.ErrInvalidInput)
	}
	if t.IsValidated {
		return ticket.Ticket{}, core_errors.ErrConflict
	}

	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if ev.IsDeleted() || ev.Status == event.StatusCancelled {
		return ticket.Ticket{}, fmt.Errorf("%w: event is not live", core_errors.ErrInvalidInput)
	}

	if err := s.tickets.MarkValidated(ctx, ticketID); err != nil {
		return ticket.Ticket{}, err
	}

	t.IsValidated = true
	s.log.Infof("ticket %s validated for event %s", ticketID, eventID)
	return t, nil
}

// History proxies the read-only scan trail from the Scan-Validation service.
func (s *ScanService) History(ctx context.Context, ticketID uuid.UUID) ([]clients.ScanRecord, error) {
	return s.scan.History(ctx, ticketID)
}
