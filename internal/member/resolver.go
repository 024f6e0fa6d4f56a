package member

import "context"

// Session is the authenticated caller as carried by a verified token.
// GuardianSupreme is resolved once at login and travels with the session.
type Session struct {
	UserID          string
	GuardianSupreme bool
}

// Access is the resolved capability set for a session.
type Access struct {
	HasAccess         bool `json:"has_access"`
	IsArchonte        bool `json:"is_archonte"`
	IsGuardianSupreme bool `json:"is_guardian_supreme"`
}

// Resolver answers "who may see what" for a session.
type Resolver struct {
	roles RoleStore
}

// NewResolver constructs a Resolver over the given role store.
func NewResolver(roles RoleStore) *Resolver {
	return &Resolver{roles: roles}
}

// Resolve determines access flags for the session. Pure read; a role
// lookup failure yields no access rather than an error (fail closed).
// A guardian-supreme session is granted unconditionally without the
// archonte flag: the guardian role supersedes, it does not stack.
func (r *Resolver) Resolve(ctx context.Context, sess Session) Access {
	if sess.UserID == "" {
		return Access{}
	}
	if sess.GuardianSupreme {
		return Access{HasAccess: true, IsGuardianSupreme: true}
	}
	ok, err := r.roles.HasRole(ctx, sess.UserID, RoleArchonte)
	if err != nil || !ok {
		return Access{}
	}
	return Access{HasAccess: true, IsArchonte: true}
}
