package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Directory implements Provider over an account store and a token
// verifier.
type Directory struct {
	accounts AccountStore
	tokens   *Tokens
	now      func() time.Time
}

var _ Provider = (*Directory)(nil)

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithDirectoryClock overrides the time source (useful for tests).
func WithDirectoryClock(fn func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.now = fn
		}
	}
}

// NewDirectory constructs a Directory.
func NewDirectory(accounts AccountStore, tokens *Tokens, opts ...DirectoryOption) *Directory {
	d := &Directory{
		accounts: accounts,
		tokens:   tokens,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Verify validates a bearer token and extracts its subject.
func (d *Directory) Verify(ctx context.Context, token string) (Subject, error) {
	return d.tokens.Verify(token)
}

// Login authenticates an email/password pair. Lookup and comparison
// failures collapse into ErrInvalidCredentials.
func (d *Directory) Login(ctx context.Context, email, password string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}
	acc, err := d.accounts.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(acc.PasswordHash, password); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return acc, nil
}

// Mint issues a session token for the account.
func (d *Directory) Mint(userID string, guardian bool) (string, time.Time, error) {
	return d.tokens.Mint(userID, guardian)
}

// CreateUser registers a new identity and returns its identifier.
func (d *Directory) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	acc := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    d.now().UTC(),
	}
	if err := d.accounts.Create(ctx, acc); err != nil {
		return "", err
	}
	return acc.ID, nil
}

// UpdateCredentials applies a partial credential update.
func (d *Directory) UpdateCredentials(ctx context.Context, userID string, upd CredentialUpdate) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	if upd.IsZero() {
		return nil
	}
	var email, hash *string
	if upd.Email != nil {
		normalized := normalizeEmail(*upd.Email)
		if normalized == "" || !strings.Contains(normalized, "@") {
			return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		email = &normalized
	}
	if upd.Password != nil {
		h, err := HashPassword(*upd.Password)
		if err != nil {
			return err
		}
		hash = &h
	}
	return d.accounts.Update(ctx, userID, email, hash)
}

// DeleteUser removes the identity record.
func (d *Directory) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	return d.accounts.Delete(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
