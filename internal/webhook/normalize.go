package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// The generator has shipped two payload shapes over its lifetime: the legacy
// flat shape and the newer envelope with an eventType and a nested data
// object. Both are accepted here and normalized once; nothing downstream of
// this package branches on shape.

const (
	EventTicketCompleted = "ticket.completed"
	EventTicketFailed    = "ticket.failed"
	EventTicketPartial   = "ticket.partial"
)

func KnownEventType(eventType string) bool {
	switch eventType {
	case EventTicketCompleted, EventTicketFailed, EventTicketPartial:
		return true
	}
	return false
}

// TicketOutcome is the canonical per-ticket result.
type TicketOutcome struct {
	TicketID    uuid.UUID `json:"ticket_id"`
	TicketCode  string    `json:"ticket_code,omitempty"`
	QRCodeData  string    `json:"qr_code_data,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	GeneratedAt string    `json:"generated_at,omitempty"`
	Success     bool      `json:"success"`
}

type Summary struct {
	Total            int    `json:"total"`
	Successful       int    `json:"successful"`
	Failed           int    `json:"failed"`
	ProcessingTimeMs *int64 `json:"processing_time_ms,omitempty"`
}

// Payload is the canonical webhook form emitted by Normalize.
type Payload struct {
	JobID     uuid.UUID       `json:"job_id"`
	EventType string          `json:"event_type"`
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp,omitempty"`
	Tickets   []TicketOutcome `json:"tickets"`
	Summary   Summary         `json:"summary"`
	Error     string          `json:"error,omitempty"`
	// Extensions preserves unknown top-level keys verbatim. They never
	// influence reconciliation.
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// CanonicalJSON is the deterministic serialization used for dedup hashing.
// Struct fields marshal in declaration order and map keys are sorted, so
// equal payloads always produce equal bytes.
func (p *Payload) CanonicalJSON() ([]byte, error) {
	return json.Marshal(p)
}

// DedupKey hashes (job_id, event_type, canonical payload) into the
// at-most-once key for the delivery ledger.
func (p *Payload) DedupKey() (string, error) {
	canonical, err := p.CanonicalJSON()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(p.JobID.String()))
	h.Write([]byte(p.EventType))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// topLevelKeys are the keys consumed by normalization across all accepted
// shapes; anything else lands in Extensions.
var topLevelKeys = map[string]struct{}{
	"job_id": {}, "jobId": {},
	"event_type": {}, "eventType": {},
	"status": {}, "timestamp": {},
	"tickets": {}, "summary": {}, "data": {},
	"processing_time_ms": {}, "error": {}, "extensions": {},
}

// Normalize parses body in either historic shape (or the canonical form
// itself) and produces the canonical payload. It is idempotent: normalizing
// a serialized canonical payload yields the same canonical payload.
func Normalize(body []byte) (*Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	p := &Payload{}

	jobIDRaw, ok := firstRaw(raw, "job_id", "jobId")
	if !ok {
		return nil, fmt.Errorf("missing job id")
	}
	jobID, err := parseUUID(jobIDRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid job id: %w", err)
	}
	p.JobID = jobID

	p.Status = stringField(raw, "status")
	if p.Status == "" {
		return nil, fmt.Errorf("missing status")
	}
	p.Timestamp = stringField(raw, "timestamp")

	if et := stringField(raw, "event_type", "eventType"); et != "" {
		p.EventType = et
	} else {
		// The legacy shape carries no event type; it is derived from status.
		p.EventType = "ticket." + p.Status
	}

	// The new shape nests tickets, summary and error under data.
	var data map[string]json.RawMessage
	if dataRaw, ok := raw["data"]; ok {
		if err := json.Unmarshal(dataRaw, &data); err != nil {
			return nil, fmt.Errorf("invalid data object: %w", err)
		}
	}

	ticketsRaw, ok := raw["tickets"]
	if !ok && data != nil {
		ticketsRaw, ok = data["tickets"]
	}
	if ok && len(ticketsRaw) > 0 && string(ticketsRaw) != "null" {
		tickets, err := normalizeTickets(ticketsRaw, p.Status)
		if err != nil {
			return nil, err
		}
		p.Tickets = tickets
	}
	if p.Tickets == nil {
		p.Tickets = []TicketOutcome{}
	}

	summaryRaw, ok := raw["summary"]
	if !ok && data != nil {
		summaryRaw, ok = data["summary"]
	}
	if ok {
		if err := json.Unmarshal(summaryRaw, &p.Summary); err != nil {
			return nil, fmt.Errorf("invalid summary: %w", err)
		}
	} else {
		for _, t := range p.Tickets {
			p.Summary.Total++
			if t.Success {
				p.Summary.Successful++
			} else {
				p.Summary.Failed++
			}
		}
	}

	if p.Summary.ProcessingTimeMs == nil {
		if ms, ok := int64Field(raw, "processing_time_ms"); ok {
			p.Summary.ProcessingTimeMs = &ms
		} else if data != nil {
			if ms, ok := int64Field(data, "processingTime"); ok {
				p.Summary.ProcessingTimeMs = &ms
			}
		}
	}

	p.Error = stringField(raw, "error")
	if p.Error == "" && data != nil {
		p.Error = stringField(data, "error")
	}

	// Carry forward an extensions bag from a canonical payload, then absorb
	// any unknown keys of this body.
	if extRaw, ok := raw["extensions"]; ok {
		if err := json.Unmarshal(extRaw, &p.Extensions); err != nil {
			return nil, fmt.Errorf("invalid extensions: %w", err)
		}
	}
	for key, value := range raw {
		if _, known := topLevelKeys[key]; known {
			continue
		}
		if p.Extensions == nil {
			p.Extensions = map[string]json.RawMessage{}
		}
		p.Extensions[key] = value
	}

	return p, nil
}

func normalizeTickets(raw json.RawMessage, payloadStatus string) ([]TicketOutcome, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid tickets list: %w", err)
	}

	tickets := make([]TicketOutcome, 0, len(items))
	for i, item := range items {
		idRaw, ok := firstRaw(item, "ticket_id", "ticketId")
		if !ok {
			return nil, fmt.Errorf("ticket %d: missing ticket id", i)
		}
		id, err := parseUUID(idRaw)
		if err != nil {
			return nil, fmt.Errorf("ticket %d: invalid ticket id: %w", i, err)
		}

		out := TicketOutcome{
			TicketID:    id,
			TicketCode:  stringField(item, "ticket_code", "ticketCode"),
			QRCodeData:  stringField(item, "qr_code_data", "qrCodeData"),
			FileURL:     stringField(item, "file_url", "fileUrl", "ticket_file_url"),
			FilePath:    stringField(item, "file_path", "filePath", "ticket_file_path"),
			GeneratedAt: stringField(item, "generated_at", "generatedAt"),
		}

		if successRaw, ok := item["success"]; ok {
			if err := json.Unmarshal(successRaw, &out.Success); err != nil {
				return nil, fmt.Errorf("ticket %d: invalid success flag: %w", i, err)
			}
		} else {
			out.Success = payloadStatus == "completed"
		}
		tickets = append(tickets, out)
	}
	return tickets, nil
}

func firstRaw(m map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && len(v) > 0 && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]json.RawMessage, keys ...string) string {
	raw, ok := firstRaw(m, keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func int64Field(m map[string]json.RawMessage, keys ...string) (int64, bool) {
	raw, ok := firstRaw(m, keys...)
	if !ok {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func parseUUID(raw json.RawMessage) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}
