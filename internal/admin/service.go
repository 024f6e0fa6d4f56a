// Package admin is the privileged command surface for member lifecycle
// operations. Every operation re-verifies the caller's guardian-supreme
// role by a direct role-assignment lookup before any mutation proceeds;
// client-supplied claims are never trusted for writes.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lordre.org/internal/history"
	"lordre.org/internal/identity"
	"lordre.org/internal/member"
	"lordre.org/internal/obs"
)

// ErrDependency marks a failed call to the identity provider or the
// persistent store. The underlying message is preserved for the caller.
var ErrDependency = errors.New("admin: dependency failure")

// Service performs user lifecycle operations as composite actions with
// compensating rollback.
type Service struct {
	idp      identity.Provider
	profiles member.ProfileStore
	roles    member.RoleStore
	history  *history.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the admin service.
func NewService(idp identity.Provider, profiles member.ProfileStore, roles member.RoleStore, hist *history.Logger, opts ...Option) *Service {
	s := &Service{
		idp:      idp,
		profiles: profiles,
		roles:    roles,
		history:  hist,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize resolves the bearer token and verifies guardian-supreme by
// direct role-assignment lookup. Returns the acting user id and a
// context carrying the actor session for audit attribution.
func (s *Service) authorize(ctx context.Context, token string) (string, context.Context, error) {
	sub, err := s.idp.Verify(ctx, token)
	if err != nil {
		return "", ctx, identity.ErrInvalidToken
	}
	held, err := s.roles.Roles(ctx, sub.UserID)
	if err != nil {
		// Fail closed on lookup errors.
		return "", ctx, fmt.Errorf("%w: requires role %s", member.ErrForbidden, member.RoleGuardianSupreme)
	}
	if err := member.Authorize(held, member.CapManageMembers); err != nil {
		return "", ctx, err
	}
	actorCtx := member.ContextWithSession(ctx, member.Session{UserID: sub.UserID, GuardianSupreme: true})
	return sub.UserID, actorCtx, nil
}

// CreateUserInput are the fields for create_user. Grade defaults to
// novice when empty.
type CreateUserInput struct {
	Email     string
	Password  string
	Pseudonym string
	Grade     string
}

// CreateUserResult reports the new identity.
type CreateUserResult struct {
	UserID string
}

// CreateUser creates identity, profile, and default role assignment as
// one composite operation. If profile creation fails after the identity
// was created, the identity is deleted again: no orphan identity may
// persist without a profile. Default-role assignment is best-effort by
// design; identity plus profile is the minimum viable state.
func (s *Service) CreateUser(ctx context.Context, token string, in CreateUserInput) (CreateUserResult, error) {
	_, actorCtx, err := s.authorize(ctx, token)
	if err != nil {
		return CreateUserResult{}, err
	}

	in.Email = strings.TrimSpace(in.Email)
	in.Pseudonym = strings.TrimSpace(in.Pseudonym)
	if in.Email == "" || in.Password == "" || in.Pseudonym == "" {
		return CreateUserResult{}, fmt.Errorf("%w: email, password and pseudonym are required", member.ErrInvalidInput)
	}
	grade := member.GradeNovice
	if in.Grade != "" {
		grade, err = member.ParseGrade(in.Grade)
		if err != nil {
			return CreateUserResult{}, err
		}
	}

	var userID string
	var saga Saga
	saga.Add(Step{
		Name: "identity.create",
		Run: func(ctx context.Context) error {
			id, err := s.idp.CreateUser(ctx, in.Email, in.Password)
			if err != nil {
				return err
			}
			userID = id
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return s.idp.DeleteUser(ctx, userID)
		},
	})
	saga.Add(Step{
		Name: "profile.create",
		Run: func(ctx context.Context) error {
			return s.profiles.Create(ctx, &member.Profile{
				ID:        userID,
				Pseudonym: in.Pseudonym,
				Grade:     grade,
				Status:    member.StatusActive,
				JoinedAt:  s.now().UTC(),
			})
		},
	})
	if err := saga.Run(ctx); err != nil {
		return CreateUserResult{}, s.classify(err)
	}

	if err := s.roles.Assign(ctx, userID, member.RoleInitiate); err != nil {
		obs.LogEvent(map[string]any{
			"level":   "warn",
			"msg":     "default role assignment failed",
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	s.record(actorCtx, userID, fmt.Sprintf("member created: %s", in.Pseudonym), map[string]string{
		"event":     "member_created",
		"pseudonym": in.Pseudonym,
		"grade":     string(grade),
	})
	return CreateUserResult{UserID: userID}, nil
}

// UpdateUserInput are the fields for update_user. Nil fields are left
// untouched; Grade and Status are raw labels validated here.
type UpdateUserInput struct {
	UserID    string
	Email     *string
	Password  *string
	Pseudonym *string
	Grade     *string
	Status    *string
}

// UpdateUser splits the mutation into an identity-credential update and
// a profile-field update, each skipped when no relevant field was
// supplied. A failed credential update aborts before any profile write.
func (s *Service) UpdateUser(ctx context.Context, token string, in UpdateUserInput) error {
	_, actorCtx, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return fmt.Errorf("%w: user_id is required", member.ErrInvalidInput)
	}

	var changed []string

	cred := identity.CredentialUpdate{Email: in.Email, Password: in.Password}
	if !cred.IsZero() {
		if err := s.idp.UpdateCredentials(ctx, in.UserID, cred); err != nil {
			return s.classify(fmt.Errorf("identity.update: %w", err))
		}
		if in.Email != nil {
			changed = append(changed, "email")
		}
		if in.Password != nil {
			changed = append(changed, "password")
		}
	}

	upd := member.ProfileUpdate{Pseudonym: in.Pseudonym}
	if in.Pseudonym != nil {
		trimmed := strings.TrimSpace(*in.Pseudonym)
		if trimmed == "" {
			return fmt.Errorf("%w: pseudonym must not be empty", member.ErrInvalidInput)
		}
		upd.Pseudonym = &trimmed
		changed = append(changed, "pseudonym")
	}
	if in.Grade != nil {
		grade, err := member.ParseGrade(*in.Grade)
		if err != nil {
			return err
		}
		upd.Grade = &grade
		changed = append(changed, "grade")
	}
	if in.Status != nil {
		status, err := member.ParseStatus(*in.Status)
		if err != nil {
			return err
		}
		upd.Status = &status
		changed = append(changed, "status")
	}
	if !upd.IsZero() {
		if _, err := s.profiles.Update(ctx, in.UserID, upd); err != nil {
			return s.classify(fmt.Errorf("profile.update: %w", err))
		}
	}

	if len(changed) == 0 {
		return nil
	}
	s.record(actorCtx, in.UserID, "member updated", map[string]string{
		"event":  "member_updated",
		"fields": strings.Join(changed, ","),
	})
	return nil
}

// DeleteUser removes the identity; the store cascades profile and role
// rows. Self-deletion is rejected before any store call so a guardian
// supreme cannot lock the system out.
func (s *Service) DeleteUser(ctx context.Context, token, targetUserID string) error {
	actorID, actorCtx, err := s.authorize(ctx, token)
	if err != nil {
		return err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return fmt.Errorf("%w: user_id is required", member.ErrInvalidInput)
	}
	if targetUserID == actorID {
		return fmt.Errorf("%w: self-deletion is forbidden", member.ErrInvalidInput)
	}

	if err := s.idp.DeleteUser(ctx, targetUserID); err != nil {
		return s.classify(fmt.Errorf("identity.delete: %w", err))
	}

	s.record(actorCtx, targetUserID, "member deleted", map[string]string{
		"event": "member_deleted",
	})
	return nil
}

// classify keeps validation errors as-is and wraps everything else as a
// dependency failure, preserving the underlying message.
func (s *Service) classify(err error) error {
	if errors.Is(err, member.ErrInvalidInput) || errors.Is(err, identity.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependency, err)
}

// record mirrors the operation into the action history. Append failures
// are non-fatal: the mutation is already committed, the omission is
// counted for operators.
func (s *Service) record(ctx context.Context, targetID, description string, meta map[string]string) {
	_, err := s.history.Log(ctx, history.TypeStatusChanged, description,
		history.WithTarget(targetID, "member"),
		history.WithMetadata(meta),
	)
	if err != nil {
		obs.HistoryAppendFailed()
		obs.LogEvent(map[string]any{
			"level":     "warn",
			"msg":       "history append failed after admin action",
			"target_id": targetID,
			"error":     err.Error(),
		})
	}
}
