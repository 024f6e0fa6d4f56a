// Package identity is the boundary to the identity provider: token
// verification yielding a subject, and the administrative user
// primitives the admin service composes.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrInvalidCredentials indicates an email/password pair that does
	// not resolve to an account.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("identity: account not found")
	// ErrConflict indicates a duplicate email.
	ErrConflict = errors.New("identity: email already registered")
	// ErrInvalidInput indicates malformed account fields.
	ErrInvalidInput = errors.New("identity: invalid input")
)

// Subject is the verified token payload. GuardianSupreme is a
// session-level capability: resolved once at token issuance, carried in
// the claims, trusted only for read-side resolution.
type Subject struct {
	UserID          string
	GuardianSupreme bool
}

// Provider is the identity surface consumed by this core.
type Provider interface {
	// Verify validates a bearer token and extracts its subject.
	Verify(ctx context.Context, token string) (Subject, error)
	// CreateUser registers a new identity and returns its identifier.
	CreateUser(ctx context.Context, email, password string) (string, error)
	// UpdateCredentials applies a partial credential update.
	UpdateCredentials(ctx context.Context, userID string, upd CredentialUpdate) error
	// DeleteUser removes the identity; dependent rows cascade at the
	// store level.
	DeleteUser(ctx context.Context, userID string) error
}

// CredentialUpdate carries a partial identity mutation. Nil fields are
// left untouched.
type CredentialUpdate struct {
	Email    *string
	Password *string
}

// IsZero reports whether the update touches nothing.
func (u CredentialUpdate) IsZero() bool {
	return u.Email == nil && u.Password == nil
}

// Account is a stored identity record.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists identity accounts.
type AccountStore interface {
	Create(ctx context.Context, acc *Account) error
	Find(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	// Update applies non-nil fields; Password, when set, is already
	// hashed.
	Update(ctx context.Context, id string, email, passwordHash *string) error
	Delete(ctx context.Context, id string) error
}
