package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Outcome records how an inbound webhook delivery was handled. A dedup key is
// processed at most once with outcome ok; replays return the stored receipt.
type Outcome string

const (
	OutcomeInProgress  Outcome = "in_progress"
	OutcomeOK          Outcome = "ok"
	OutcomeError       Outcome = "error"
	OutcomeAppliedLate Outcome = "applied_late"
	OutcomeIgnored     Outcome = "ignored"
)

// WebhookDelivery is the idempotency ledger for the reconciler. DedupKey is
// sha256(job_id || event_type || canonical_payload).
type WebhookDelivery struct {
	ID               uuid.UUID
	JobID            uuid.UUID
	EventType        string
	DedupKey         string
	SignatureOK      bool
	NormalizedBody   []byte
	Outcome          Outcome
	Receipt          []byte
	ProcessingTimeMs int64
	ReceivedAt       time.Time
	UpdatedAt        time.Time
}
