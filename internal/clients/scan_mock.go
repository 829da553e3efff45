package clients

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ScanMock serves canned scan histories keyed by ticket id.
type ScanMock struct {
	mock sync.Mutex

	Records map[uuid.UUID][]ScanRecord

	RequestedTickets []uuid.UUID
}

func NewScanMock() *ScanMock {
	return &ScanMock{Records: map[uuid.UUID][]ScanRecord{}}
}

func (m *ScanMock) History(_ context.Context, ticketID uuid.UUID) ([]ScanRecord, error) {
	m.mock.Lock()
	defer m.mock.Unlock()

	m.RequestedTickets = append(m.RequestedTickets, ticketID)
	return m.Records[ticketID], nil
}
