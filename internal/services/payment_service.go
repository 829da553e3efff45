package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"event-planner-core/internal/domain/payment"
	"event-planner-core/internal/repository"
	"event-planner-core/internal/webhook"
	core_errors "event-planner-core/pkg/errors"
	"event-planner-core/pkg/logger"
)

// paymentWebhookBody is the payload the Payment service posts back. It is a
// simpler, single-shape analogue of the ticket webhook.
type paymentWebhookBody struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	Status          payment.Status  `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	Timestamp       string          `json:"timestamp,omitempty"`
}

// PaymentService owns the payments table and consumes the Payment service's
// webhooks. The webhook uses its own secret, distinct from the ticket
// generator's.
type PaymentService struct {
	payments repository.PaymentRepository
	tickets  repository.TicketRepository
	secret   []byte
	log      *logger.Logger
}

func NewPaymentService(payments repository.PaymentRepository, tickets repository.TicketRepository, secret []byte, log *logger.Logger) *PaymentService {
	return &PaymentService{payments: payments, tickets: tickets, secret: secret, log: log}
}

type CreatePaymentInput struct {
	TicketID        uuid.NullUUID
	EventID         uuid.UUID
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
}

func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (payment.Payment, error) {
	if in.PaymentIntentID == "" {
		return payment.Payment{}, fmt.Errorf("%w: payment_intent_id is required", core_errors.ErrInvalidInput)
	}
	if in.Amount.IsNegative() {
		return payment.Payment{}, fmt.Errorf("%w: amount must not be negative", core_errors.ErrInvalidInput)
	}

	now := time.Now()
	p := payment.Payment{
		ID:              uuid.New(),
		TicketID:        in.TicketID,
		EventID:         in.EventID,
		PaymentIntentID: in.PaymentIntentID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Status:          payment.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payments.Create(ctx, &p); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

// PaymentReceipt acknowledges a processed payment webhook.
type PaymentReceipt struct {
	PaymentIntentID string         `json:"payment_intent_id"`
	Status          payment.Status `json:"status"`
	Changed         bool           `json:"changed"`
}

// ProcessWebhook verifies, parses, and applies a payment status webhook.
// Redelivery of an already-applied status is acknowledged without a change,
// which keeps the endpoint idempotent.
func (s *PaymentService) ProcessWebhook(ctx context.Context, body []byte, signature string) (PaymentReceipt, error) {
	if err := webhook.VerifySignature(s.secret, body, signature); err != nil {
		return PaymentReceipt{}, err
	}

	var wb paymentWebhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return PaymentReceipt{}, fmt.Errorf("%w: %v", core_errors.ErrInvalidInput, err)
	}
	if wb.PaymentIntentID == "" || wb.Status == "" {
		return PaymentReceipt{}, fmt.Errorf("%w: payment_intent_id and status are required", core_errors.ErrInvalidInput)
	}

	p, err := s.payments.GetByIntentID(ctx, wb.PaymentIntentID)
	if err != nil {
		return PaymentReceipt{}, err
	}

	if p.Status == wb.Status {
		return PaymentReceipt{PaymentIntentID: wb.PaymentIntentID, Status: p.Status, Changed: false}, nil
	}
	if !payment.CanTransition(p.Status, wb.Status) {
		return PaymentReceipt{}, fmt.Errorf("%w: %s -> %s", core_errors.ErrInvalidTransition, p.Status, wb.Status)
	}

	updated, err := s.payments.Transition(ctx, nil, p.ID, p.Status, wb.Status, wb.FailureReason)
	if err != nil {
		return PaymentReceipt{}, err
	}
	if updated == nil {
		// Concurrent webhook got there first; report current state.
		current, err := s.payments.GetByIntentID(ctx, wb.PaymentIntentID)
		if err != nil {
			return PaymentReceipt{}, err
		}
		return PaymentReceipt{PaymentIntentID: wb.PaymentIntentID, Status: current.Status, Changed: false}, nil
	}

	s.log.Infof("payment %s moved %s -> %s", wb.PaymentIntentID, p.Status, updated.Status)
	return PaymentReceipt{PaymentIntentID: wb.PaymentIntentID, Status: updated.Status, Changed: true}, nil
}
