package clients

import (
	"context"
	"sync"
)

// NotificationMock records sent notifications.
type NotificationMock struct {
	mock sync.Mutex

	Err error

	SentNotifications []Notification
}

func (m *NotificationMock) Send(_ context.Context, n Notification) error {
	m.mock.Lock()
	defer m.mock.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, n)
	return nil
}

func (m *NotificationMock) Sent() []Notification {
	m.mock.Lock()
	defer m.mock.Unlock()

	out := make([]Notification, len(m.SentNotifications))
	copy(out, m.SentNotifications)
	return out
}
