package storage

import (
	"context"
	"sync"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
)

// MemoryStore is an in-memory SubmissionStore. It backs tests and local
// development with the database disabled; records do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.SubmissionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.SubmissionRecord)}
}

// Get returns the record for a device hash, or (nil, nil) when absent.
func (m *MemoryStore) Get(_ context.Context, deviceHash string) (*domain.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[deviceHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stores or replaces the record for a device hash.
func (m *MemoryStore) Put(_ context.Context, deviceHash string, rec domain.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[deviceHash] = rec
	return nil
}

// Delete removes the record for a device hash.
func (m *MemoryStore) Delete(_ context.Context, deviceHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, deviceHash)
	return nil
}
