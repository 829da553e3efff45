package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// CanTransition mirrors the payment provider's lifecycle. Refunds are only
// reachable from completed payments.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusCompleted:
		return to == StatusRefunded
	default:
		return false
	}
}

type Payment struct {
	ID              uuid.UUID
	TicketID        uuid.NullUUID
	EventID         uuid.UUID
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	Status          Status
	FailureReason   sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
