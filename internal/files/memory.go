package files

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a process-lifetime Store. Records are never evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]Record{},
	}
}

// Put stores record under its token, replacing any previous record.
func (s *MemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	s.records[record.Token] = record
	s.mu.Unlock()
	return nil
}

// Get returns the record stored under token.
func (s *MemoryStore) Get(_ context.Context, token string) (Record, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Record{}, ErrNotFound
	}
	s.mu.RLock()
	record, ok := s.records[token]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
