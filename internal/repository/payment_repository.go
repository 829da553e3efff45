package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/payment"
	core_errors "event-planner-core/pkg/errors"
)

const paymentColumns = `
    id, ticket_id, event_id, payment_intent_id, amount, currency, status,
    failure_reason, created_at, updated_at`

type paymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) exec(tx DBTX) DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO payments
            (id, ticket_id, event_id, payment_intent_id, amount, currency, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		p.ID,
		p.TicketID,
		p.EventID,
		p.PaymentIntentID,
		p.Amount,
		p.Currency,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return core_errors.ErrAlreadyExists
	}
	return err
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (payment.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_intent_id = $1`, intentID)
	return scanPayment(row)
}

func (r *paymentRepository) Transition(ctx context.Context, tx DBTX, id uuid.UUID, from, to payment.Status, failureReason *string) (*payment.Payment, error) {
	if !payment.CanTransition(from, to) {
		return nil, core_errors.ErrInvalidTransition
	}
	execDB := r.exec(tx)

	row := execDB.QueryRowContext(ctx, `
        UPDATE payments
        SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = $3
        WHERE id = $4 AND status = $5
        RETURNING `+paymentColumns, to, failureReason, time.Now(), id, from)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, core_errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func scanPayment(row rowScanner) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID,
		&p.TicketID,
		&p.EventID,
		&p.PaymentIntentID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.Payment{}, core_errors.ErrNotFound
		}
		return payment.Payment{}, err
	}
	return p, nil
}
