package phase

import (
	"context"
	"sync"
)

// Record is the durable form of the server phase. Absent values decode as the zero Record.
type Record struct {
	Started            bool `yaml:"started" json:"started"`
	BeginningRemaining int  `yaml:"beginning-timer-remaining" json:"beginning_timer_remaining"`
	EndRemaining       int  `yaml:"end-timer-remaining" json:"end_timer_remaining"`
}

// Store persists a Record. Implementations must treat a missing record as the zero Record.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	rec   Record
	saves int

	// SaveErr, when set, is returned from every Save.
	SaveErr error
	// LoadErr, when set, is returned from every Load.
	LoadErr error
}

// NewMemoryStore creates a MemoryStore seeded with rec.
func NewMemoryStore(rec Record) *MemoryStore {
	return &MemoryStore{rec: rec}
}

func (m *MemoryStore) Load(_ context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return Record{}, m.LoadErr
	}
	return m.rec, nil
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.rec = rec
	m.saves++
	return nil
}

// Record returns the last saved record.
func (m *MemoryStore) Record() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec
}

// Saves returns how many successful writes the store received.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
