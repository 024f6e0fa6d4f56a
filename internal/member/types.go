package member

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")
	ErrForbidden    = errors.New("forbidden")
)

// Grade is the ordered initiation ladder. Ordering matters for ranking.
type Grade string

const (
	GradeNovice    Grade = "novice"
	GradeApprenti  Grade = "apprenti"
	GradeCompagnon Grade = "compagnon"
	GradeMaitre    Grade = "maitre"
	GradeSage      Grade = "sage"
	GradeOracle    Grade = "oracle"
)

var gradeOrder = []Grade{GradeNovice, GradeApprenti, GradeCompagnon, GradeMaitre, GradeSage, GradeOracle}

// Rank returns the position of the grade on the ladder, 0 for novice.
// Unknown grades rank below novice.
func (g Grade) Rank() int {
	for i, known := range gradeOrder {
		if g == known {
			return i
		}
	}
	return -1
}

// ParseGrade normalizes and validates a grade label.
func ParseGrade(raw string) (Grade, error) {
	g := Grade(strings.TrimSpace(strings.ToLower(raw)))
	if g.Rank() < 0 {
		return "", fmt.Errorf("%w: unknown grade %q", ErrInvalidInput, raw)
	}
	return g, nil
}

// Role tags are drawn from a closed set.
type Role string

const (
	RoleInitiate        Role = "initiate"
	RoleArchonte        Role = "archonte"
	RoleGuardianSupreme Role = "guardian_supreme"
)

// ParseRole normalizes and validates a role tag.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch r {
	case RoleInitiate, RoleArchonte, RoleGuardianSupreme:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusExcluded  = "excluded"
)

// ParseStatus validates a member status label.
func ParseStatus(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case StatusActive, StatusSuspended, StatusExcluded:
		return s, nil
	}
	return "", fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, raw)
}

// Profile is the member record owned by the persistent store. Its ID is
// the identity provider's user identifier; deleting the identity
// cascades the profile.
type Profile struct {
	ID        string    `json:"id"`
	Pseudonym string    `json:"pseudonym"`
	Grade     Grade     `json:"grade"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleAssignment relates a user to a role tag.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileUpdate carries a partial profile mutation. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Pseudonym *string
	Grade     *Grade
	Status    *string
}

// IsZero reports whether the update touches nothing.
func (u ProfileUpdate) IsZero() bool {
	return u.Pseudonym == nil && u.Grade == nil && u.Status == nil
}
