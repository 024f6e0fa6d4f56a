package member

import "fmt"

// Capability identifies a guarded operation class.
type Capability string

const (
	// CapChangeAlertState guards writes to the global system state.
	CapChangeAlertState Capability = "change_alert_state"
	// CapManageMembers guards member lifecycle and role mutations.
	CapManageMembers Capability = "manage_members"
	// CapAccessKnowledgeBase guards the restricted doctrine archive.
	CapAccessKnowledgeBase Capability = "access_knowledge_base"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleGuardianSupreme: {
		CapChangeAlertState:    {},
		CapManageMembers:       {},
		CapAccessKnowledgeBase: {},
	},
	RoleArchonte: {
		CapAccessKnowledgeBase: {},
	},
}

// requiredRole is the weakest role satisfying each capability; used in
// rejection messages so the caller learns what is missing.
var requiredRole = map[Capability]Role{
	CapChangeAlertState:    RoleGuardianSupreme,
	CapManageMembers:       RoleGuardianSupreme,
	CapAccessKnowledgeBase: RoleArchonte,
}

// Allows reports whether any of the held roles grants the capability.
func Allows(roles []Role, cap Capability) bool {
	for _, role := range roles {
		if _, ok := roleCapabilities[role][cap]; ok {
			return true
		}
	}
	return false
}

// Authorize is the central policy check: no mutation to profiles, role
// assignments, or system state may proceed unless the acting identity's
// resolved roles satisfy the operation's capability. The returned error
// names the required role.
func Authorize(roles []Role, cap Capability) error {
	if Allows(roles, cap) {
		return nil
	}
	required, ok := requiredRole[cap]
	if !ok {
		return fmt.Errorf("%w: unknown capability %s", ErrForbidden, cap)
	}
	return fmt.Errorf("%w: requires role %s", ErrForbidden, required)
}
