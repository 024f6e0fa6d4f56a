package member

import (
	"context"
	"errors"
	"testing"
)

type stubRoleStore struct {
	hasRoleFn func(ctx context.Context, userID string, role Role) (bool, error)
	rolesFn   func(ctx context.Context, userID string) ([]Role, error)
}

func (s *stubRoleStore) Assign(ctx context.Context, userID string, role Role) error { return nil }

func (s *stubRoleStore) Roles(ctx context.Context, userID string) ([]Role, error) {
	if s.rolesFn != nil {
		return s.rolesFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubRoleStore) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	if s.hasRoleFn != nil {
		return s.hasRoleFn(ctx, userID, role)
	}
	return false, nil
}

func TestResolveAnonymous(t *testing.T) {
	r := NewResolver(&stubRoleStore{})
	access := r.Resolve(context.Background(), Session{})
	if access != (Access{}) {
		t.Fatalf("anonymous session must have no access: %+v", access)
	}
}

func TestResolveGuardianSupersedes(t *testing.T) {
	store := &stubRoleStore{
		hasRoleFn: func(ctx context.Context, userID string, role Role) (bool, error) {
			t.Fatal("guardian session must not hit the role store")
			return false, nil
		},
	}
	r := NewResolver(store)
	access := r.Resolve(context.Background(), Session{UserID: "u1", GuardianSupreme: true})
	if !access.HasAccess || !access.IsGuardianSupreme {
		t.Fatalf("guardian must be granted: %+v", access)
	}
	if access.IsArchonte {
		t.Fatalf("guardian must not report archonte: %+v", access)
	}
}

func TestResolveArchonte(t *testing.T) {
	store := &stubRoleStore{
		hasRoleFn: func(ctx context.Context, userID string, role Role) (bool, error) {
			if role != RoleArchonte {
				t.Fatalf("unexpected role lookup: %s", role)
			}
			return userID == "arc", nil
		},
	}
	r := NewResolver(store)

	access := r.Resolve(context.Background(), Session{UserID: "arc"})
	if !access.HasAccess || !access.IsArchonte || access.IsGuardianSupreme {
		t.Fatalf("unexpected archonte access: %+v", access)
	}

	access = r.Resolve(context.Background(), Session{UserID: "nobody"})
	if access != (Access{}) {
		t.Fatalf("user without assignments must have no access: %+v", access)
	}
}

func TestResolveFailsClosed(t *testing.T) {
	store := &stubRoleStore{
		hasRoleFn: func(ctx context.Context, userID string, role Role) (bool, error) {
			return false, errors.New("store unreachable")
		},
	}
	r := NewResolver(store)
	access := r.Resolve(context.Background(), Session{UserID: "u1"})
	if access != (Access{}) {
		t.Fatalf("lookup failure must yield no access: %+v", access)
	}
}
