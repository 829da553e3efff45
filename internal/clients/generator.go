package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// DispatchTicket is one ticket line inside a dispatch envelope.
type DispatchTicket struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	EventGuestID uuid.UUID `json:"event_guest_id"`
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	TemplateID   *string   `json:"template_id,omitempty"`
}

// DispatchEnvelope is the request body sent to the Ticket-Generator when a
// job is handed off. The generator answers asynchronously on callback_url.
type DispatchEnvelope struct {
	CorrelationID string           `json:"correlation_id"`
	JobID         uuid.UUID        `json:"job_id"`
	EventID       uuid.UUID        `json:"event_id"`
	Tickets       []DispatchTicket `json:"tickets"`
	CallbackURL   string           `json:"callback_url"`
}

// GeneratorClient hands jobs off to the Ticket-Generator service.
type GeneratorClient interface {
	Dispatch(ctx context.Context, envelope DispatchEnvelope) error
}

// DispatchError carries the generator's HTTP status so the caller can decide
// whether the job is worth re-sending. 4xx means the envelope itself was
// rejected; 5xx means the generator was unhealthy.
type DispatchError struct {
	StatusCode int
	Body       string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("ticket generator: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same envelope may succeed on a later attempt.
func (e *DispatchError) Retryable() bool {
	return e.StatusCode >= 500
}

type HTTPGeneratorClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPGeneratorClient(baseURL string) *HTTPGeneratorClient {
	return &HTTPGeneratorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: collaboratorTimeout},
	}
}

func (c *HTTPGeneratorClient) Dispatch(ctx context.Context, envelope DispatchEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/internal/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-service-name", ServiceName)
	req.Header.Set("x-correlation-id", envelope.CorrelationID)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures look like a 503 to the caller: retryable.
		return &DispatchError{StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return &DispatchError{StatusCode: resp.StatusCode, Body: buf.String()}
}
