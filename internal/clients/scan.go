package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	core_errors "event-planner-core/pkg/errors"
)

// ScanRecord is one check-in recorded by the Scan-Validation service.
type ScanRecord struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	ScannedAt time.Time `json:"scanned_at"`
	ScannerID string    `json:"scanner_id"`
	Valid     bool      `json:"valid"`
}

// ScanClient reads check-in history from the Scan-Validation service.
type ScanClient interface {
	History(ctx context.Context, ticketID uuid.UUID) ([]ScanRecord, error)
}

type HTTPScanClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPScanClient(baseURL string) *HTTPScanClient {
	return &HTTPScanClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: collaboratorTimeout},
	}
}

func (c *HTTPScanClient) History(ctx context.Context, ticketID uuid.UUID) ([]ScanRecord, error) {
	url := fmt.Sprintf("%s/api/internal/scans/%s", c.baseURL, ticketID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-service-name", ServiceName)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core_errors.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core_errors.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, core_errors.ErrServiceUnavailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("scan service: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool         `json:"success"`
		Data    []ScanRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("scan service: decode response: %w", err)
	}
	return envelope.Data, nil
}
