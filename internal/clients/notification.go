package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Notification asks the Notification service to deliver a message to a guest.
// Delivery is best-effort; the caller never blocks a job transition on it.
type Notification struct {
	EventID   uuid.UUID         `json:"event_id"`
	GuestID   uuid.UUID         `json:"guest_id,omitempty"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables,omitempty"`
}

type NotificationClient interface {
	Send(ctx context.Context, n Notification) error
}

type HTTPNotificationClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPNotificationClient(baseURL string) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: collaboratorTimeout},
	}
}

func (c *HTTPNotificationClient) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/internal/notifications", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-service-name", ServiceName)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &DispatchError{StatusCode: resp.StatusCode, Body: "notification rejected"}
	}
	return nil
}
