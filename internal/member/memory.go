package member

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemory implements ProfileStore and RoleStore with in-process
// concurrency safety. Used by tests and the storeless dev mode.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	roles    map[string]map[Role]time.Time
}

// NewInMemory creates empty member storage.
func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[string]Profile),
		roles:    make(map[string]map[Role]time.Time),
	}
}

var (
	_ ProfileStore = (*InMemory)(nil)
	_ RoleStore    = (*InMemory)(nil)
)

func (s *InMemory) Create(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("%w: profile %s", ErrConflict, p.ID)
	}
	for _, existing := range s.profiles {
		if strings.EqualFold(existing.Pseudonym, p.Pseudonym) {
			return fmt.Errorf("%w: pseudonym %s", ErrConflict, p.Pseudonym)
		}
	}
	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = *p
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd ProfileUpdate) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	if upd.Pseudonym != nil {
		for otherID, existing := range s.profiles {
			if otherID != id && strings.EqualFold(existing.Pseudonym, *upd.Pseudonym) {
				return Profile{}, fmt.Errorf("%w: pseudonym %s", ErrConflict, *upd.Pseudonym)
			}
		}
		p.Pseudonym = *upd.Pseudonym
	}
	if upd.Grade != nil {
		p.Grade = *upd.Grade
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	p.UpdatedAt = time.Now().UTC()
	s.profiles[id] = p
	return p, nil
}

func (s *InMemory) Leaderboard(ctx context.Context, limit int) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranked := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Status != StatusActive {
			continue
		}
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Grade.Rank() != ranked[j].Grade.Rank() {
			return ranked[i].Grade.Rank() > ranked[j].Grade.Rank()
		}
		return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *InMemory) Assign(ctx context.Context, userID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[Role]time.Time)
	}
	if _, ok := s.roles[userID][role]; !ok {
		s.roles[userID][role] = time.Now().UTC()
	}
	return nil
}

func (s *InMemory) Roles(ctx context.Context, userID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.roles[userID]
	out := make([]Role, 0, len(held))
	for role := range held {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemory) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[userID][role]
	return ok, nil
}

// DeleteCascade removes the profile and all role assignments for the
// user, mirroring the store-level cascade on identity deletion.
func (s *InMemory) DeleteCascade(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	delete(s.roles, userID)
}
