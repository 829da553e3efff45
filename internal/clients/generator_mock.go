package clients

import (
	"context"
	"sync"
)

// GeneratorMock records dispatched envelopes. Set Err to simulate generator
// failures; it is returned once per Dispatch call until cleared.
type GeneratorMock struct {
	mock sync.Mutex

	Err error

	DispatchedEnvelopes []DispatchEnvelope
}

func (m *GeneratorMock) Dispatch(_ context.Context, envelope DispatchEnvelope) error {
	m.mock.Lock()
	defer m.mock.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.DispatchedEnvelopes = append(m.DispatchedEnvelopes, envelope)
	return nil
}

// Dispatched returns a snapshot of recorded envelopes.
func (m *GeneratorMock) Dispatched() []DispatchEnvelope {
	m.mock.Lock()
	defer m.mock.Unlock()

	out := make([]DispatchEnvelope, len(m.DispatchedEnvelopes))
	copy(out, m.DispatchedEnvelopes)
	return out
}

// Fail makes every subsequent Dispatch return err.
func (m *GeneratorMock) Fail(err error) {
	m.mock.Lock()
	defer m.mock.Unlock()
	m.Err = err
}
