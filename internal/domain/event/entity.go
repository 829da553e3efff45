// Package event holds the read-only relational entities the job subsystem
// validates against. The planner API owns their write paths.
package event

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusArchived  Status = "archived"
)

type Event struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID
	Title       string
	Status      Status
	EventDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   sql.NullTime
}

func (e Event) IsDeleted() bool {
	return e.DeletedAt.Valid
}

type Guest struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventGuest links a guest to an event; tickets are issued per event guest.
type EventGuest struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	GuestID   uuid.UUID
	CreatedAt time.Time
}

type TicketTypeKind string

const (
	TicketTypePaid TicketTypeKind = "paid"
	TicketTypeFree TicketTypeKind = "free"
)

type TicketType struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Currency  string
	Kind      TicketTypeKind
	CreatedAt time.Time
	UpdatedAt time.Time
}
