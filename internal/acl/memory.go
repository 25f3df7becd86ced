package acl

import (
	"context"
	"sync"
)

// MemoryStore keeps rows in process. Used by tests and local development.
type MemoryStore struct {
	mu        sync.Mutex
	rows      []Entry
	lookupErr error
	updateErr error
	lookups   int
}

func NewMemoryStore(rows ...Entry) *MemoryStore {
	store := &MemoryStore{}
	for i, row := range rows {
		row.Row = i + 1
		store.rows = append(store.rows, row)
	}
	return store
}

func (s *MemoryStore) Lookup(_ context.Context, rid string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return Entry{}, false, s.lookupErr
	}
	for _, row := range s.rows {
		if matchRID(row.RID, rid) {
			return row, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *MemoryStore) Update(_ context.Context, entry Entry, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.rows {
		if s.rows[i].Row == entry.Row {
			s.rows[i].Flag = flag
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Rows() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *MemoryStore) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *MemoryStore) SetErrors(lookupErr, updateErr error) {
	s.mu.Lock()
	s.lookupErr = lookupErr
	s.updateErr = updateErr
	s.mu.Unlock()
}
