package position

import (
	"context"
	"sync"

	"SignalSentinel/internal/model"
)

// MemoryStore keeps states in process memory. Records are stored encoded so
// callers never share pointers with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, instrument string) (model.PositionState, bool, error) {
	m.mu.RLock()
	data, ok := m.records[instrument]
	m.mu.RUnlock()
	if !ok {
		return model.PositionState{}, false, nil
	}
	state, err := decodeState(instrument, data)
	return state, true, err
}

func (m *MemoryStore) Save(_ context.Context, instrument string, state model.PositionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[instrument] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, instrument string) error {
	m.mu.Lock()
	delete(m.records, instrument)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context) (map[string]model.PositionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.PositionState, len(m.records))
	for k, data := range m.records {
		if state, err := decodeState(k, data); err == nil {
			out[k] = state
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
