package ticket

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status tracks the generation lifecycle of a single ticket row. Validation
// state is owned by the Scan-Validation service, not by this core.
type Status string

const (
	StatusPending   Status = "pending"
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Ticket struct {
	ID               uuid.UUID
	EventGuestID     uuid.UUID
	TicketTypeID     uuid.UUID
	TicketTemplateID uuid.NullUUID
	TicketCode       string
	Status           Status
	QRCodeData       sql.NullString
	TicketFileURL    sql.NullString
	TicketFilePath   sql.NullString
	GenerationJobID  uuid.NullUUID
	PaymentStatus    sql.NullString
	PaymentIntentID  sql.NullString
	IsValidated      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        sql.NullTime
}

// HasArtifacts reports whether all three generation artifacts are present.
func (t Ticket) HasArtifacts() bool {
	return t.QRCodeData.Valid && t.TicketFileURL.Valid && t.TicketFilePath.Valid
}
