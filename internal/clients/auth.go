// Package clients holds the HTTP clients for the other services of the
// constellation. Each collaborator is an interface with a real HTTP
// implementation and a mock for tests and local development.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	core_errors "event-planner-core/pkg/errors"
)

// AuthUser is the identity the Auth service vouches for.
type AuthUser struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

type AuthClient interface {
	ValidateToken(ctx context.Context, token string) (AuthUser, error)
	CheckPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
	GetUsersBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]AuthUser, error)
}

type authEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type HTTPAuthClient struct {
	baseURL   string
	jwtSecret []byte
	http      *http.Client
}

// NewHTTPAuthClient builds the production client. jwtSecret is only used to
// cross-check the user id inside the token against the Auth response; token
// validation itself stays delegated.
func NewHTTPAuthClient(baseURL string, jwtSecret []byte) *HTTPAuthClient {
	return &HTTPAuthClient{
		baseURL:   baseURL,
		jwtSecret: jwtSecret,
		http:      &http.Client{Timeout: collaboratorTimeout},
	}
}

func (c *HTTPAuthClient) ValidateToken(ctx context.Context, token string) (AuthUser, error) {
	var user AuthUser
	if err := c.postJSON(ctx, "/api/internal/auth/validate", map[string]string{"token": token}, &user); err != nil {
		return AuthUser{}, err
	}

	if len(c.jwtSecret) > 0 {
		if err := c.crossCheckClaims(token, user.ID); err != nil {
			return AuthUser{}, err
		}
	}
	return user, nil
}

// crossCheckClaims verifies that the subject of the locally parsed token
// matches the user the Auth service returned. A mismatch means either a
// confused deputy or a misconfigured secret; both are treated as
// unauthorized.
func (c *HTTPAuthClient) crossCheckClaims(token string, userID uuid.UUID) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return core_errors.ErrUnauthorized
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub != userID.String() {
		return core_errors.ErrUnauthorized
	}
	return nil
}

func (c *HTTPAuthClient) CheckPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	var result struct {
		Allowed bool `json:"allowed"`
	}
	err := c.postJSON(ctx, "/api/internal/auth/check-permission", map[string]string{
		"user_id":    userID.String(),
		"permission": permission,
	}, &result)
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

func (c *HTTPAuthClient) GetUsersBatch(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]AuthUser, error) {
	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	var users []AuthUser
	err := c.postJSON(ctx, "/api/internal/auth/users/batch", map[string][]string{"ids": strIDs}, &users)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]AuthUser, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (c *HTTPAuthClient) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-service-name", ServiceName)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return core_errors.ErrUnauthorized
	case resp.StatusCode >= 500:
		return core_errors.ErrServiceUnavailable
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("auth service: unexpected status %d", resp.StatusCode)
	}

	var envelope authEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("auth service: decode response: %w", err)
	}
	if !envelope.Success {
		return core_errors.ErrUnauthorized
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}
