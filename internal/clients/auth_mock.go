package clients

import (
	"context"
	"sync"

	"github.com/google/uuid"

	core_errors "event-planner-core/pkg/errors"
)

// AuthMock grants everything by default. Configure Users and Denied to shape
// individual test cases.
type AuthMock struct {
	mock sync.Mutex

	// Users maps tokens to identities. Empty map rejects every token.
	Users map[string]AuthUser
	// Denied lists "userID:permission" pairs that CheckPermission refuses.
	Denied map[string]bool

	ValidatedTokens    []string
	CheckedPermissions []string
}

func NewAuthMock() *AuthMock {
	return &AuthMock{
		Users:  map[string]AuthUser{},
		Denied: map[string]bool{},
	}
}

func (m *AuthMock) ValidateToken(_ context.Context, token string) (AuthUser, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	m.ValidatedTokens = append(m.ValidatedTokens, token)
	user, ok := m.Users[token]
	if !ok {
		return AuthUser{}, core_errors.ErrUnauthorized
	}
	return user, nil
}

func (m *AuthMock) CheckPermission(_ context.Context, userID uuid.UUID, permission string) (bool, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	key := userID.String() + ":" + permission
	m.CheckedPermissions = append(m.CheckedPermissions, key)
	return !m.Denied[key], nil
}

func (m *AuthMock) GetUsersBatch(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]AuthUser, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	result := make(map[uuid.UUID]AuthUser)
	for _, id := range ids {
		for _, u := range m.Users {
			if u.ID == id {
				result[id] = u
			}
		}
	}
	return result, nil
}
