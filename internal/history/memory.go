package history

import (
	"context"
	"sync"
)

// InMemory implements Store for tests and the storeless dev mode.
// Entries are held newest last; Recent reverses.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
	// Pseudonyms resolves actor ids to display names, mirroring the
	// profile join the SQL store performs.
	Pseudonyms map[string]string
}

// NewInMemory creates an empty history store.
func NewInMemory() *InMemory {
	return &InMemory{Pseudonyms: make(map[string]string)}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Append(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *InMemory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if name, ok := s.Pseudonyms[e.ActorID]; ok {
			e.ActorName = name
		}
		out = append(out, e)
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
