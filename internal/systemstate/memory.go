package systemstate

import (
	"context"
	"sync"
)

// InMemory implements Store for tests and the storeless dev mode.
type InMemory struct {
	mu     sync.RWMutex
	state  State
	seeded bool
}

// NewInMemory creates an unseeded store; call Seed before use.
func NewInMemory() *InMemory {
	return &InMemory{}
}

var _ Store = (*InMemory)(nil)

// Seed installs the initial record. Seeding twice is a no-op; the
// singleton invariant allows only updates after the first row.
func (s *InMemory) Seed(initial State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return
	}
	s.state = initial
	s.seeded = true
}

func (s *InMemory) Read(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seeded {
		return State{}, ErrNotSeeded
	}
	return s.state, nil
}

func (s *InMemory) Replace(ctx context.Context, next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		return ErrNotSeeded
	}
	s.state = next
	return nil
}
