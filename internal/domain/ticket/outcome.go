package ticket

import "github.com/google/uuid"

// Outcome is a reconciled per-ticket generation result, ready to be applied
// to the ticket row.
type Outcome struct {
	TicketID   uuid.UUID
	TicketCode string
	QRCodeData string
	FileURL    string
	FilePath   string
	Success    bool
}

// GenerationBreakdown is the per-event derived view combining ticket status
// with artifact presence.
type GenerationBreakdown struct {
	Total         int64 `json:"total"`
	Pending       int64 `json:"pending"`
	Generated     int64 `json:"generated"`
	Failed        int64 `json:"failed"`
	WithArtifacts int64 `json:"with_artifacts"`
	Validated     int64 `json:"validated"`
}
