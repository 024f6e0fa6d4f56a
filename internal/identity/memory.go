package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// InMemory implements AccountStore for tests and the storeless dev mode.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	// OnDelete mirrors the store-level cascade: invoked after an account
	// is removed so dependent rows (profile, roles) can follow.
	OnDelete func(userID string)
}

// NewInMemory creates an empty account store.
func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[string]Account)}
}

var _ AccountStore = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, acc.Email) {
			return fmt.Errorf("%w: %s", ErrConflict, acc.Email)
		}
	}
	s.accounts[acc.ID] = *acc
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Email, email) {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *InMemory) Update(ctx context.Context, id string, email, passwordHash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if email != nil {
		for otherID, existing := range s.accounts {
			if otherID != id && strings.EqualFold(existing.Email, *email) {
				return fmt.Errorf("%w: %s", ErrConflict, *email)
			}
		}
		acc.Email = *email
	}
	if passwordHash != nil {
		acc.PasswordHash = *passwordHash
	}
	s.accounts[id] = acc
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.accounts[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.accounts, id)
	cascade := s.OnDelete
	s.mu.Unlock()

	if cascade != nil {
		cascade(id)
	}
	return nil
}

// Len reports the number of stored accounts.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
