package member

import "context"

// ProfileStore manages member profiles.
type ProfileStore interface {
	Create(ctx context.Context, p *Profile) error
	Find(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, id string, upd ProfileUpdate) (Profile, error)
	// Leaderboard returns active profiles ranked by grade (highest first),
	// earliest join breaking ties.
	Leaderboard(ctx context.Context, limit int) ([]Profile, error)
}

// RoleStore reads and grants role assignments. Revocation happens
// through privileged role-management tooling, not this service.
type RoleStore interface {
	Assign(ctx context.Context, userID string, role Role) error
	Roles(ctx context.Context, userID string) ([]Role, error)
	HasRole(ctx context.Context, userID string, role Role) (bool, error)
}
