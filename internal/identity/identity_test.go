package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTokens(t *testing.T, opts ...TokenOption) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", "lordre-test", 15*time.Minute, opts...)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := newTokens(t)
	signed, expiresAt, err := tokens.Mint("user-1", true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiry in the past: %s", expiresAt)
	}
	sub, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub.UserID != "user-1" || !sub.GuardianSupreme {
		t.Fatalf("unexpected subject: %+v", sub)
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	tokens := newTokens(t)
	for _, raw := range []string{"", "   ", "not.a.jwt", strings.Repeat("x", 64)} {
		if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", raw, err)
		}
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	now := time.Now()
	tokens := newTokens(t, WithClock(func() time.Time { return now }))
	signed, _, err := tokens.Mint("user-1", false)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	now = now.Add(16 * time.Minute)
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenRejectsForeignIssuer(t *testing.T) {
	other, err := NewTokens("test-secret", "someone-else", 15*time.Minute)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	signed, _, err := other.Mint("user-1", false)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	tokens := newTokens(t)
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}
}

func TestDirectoryCreateAndLogin(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(NewInMemory(), newTokens(t))

	id, err := dir.CreateUser(ctx, "  Luna@Example.COM ", "secret123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("empty user id")
	}

	acc, err := dir.Login(ctx, "luna@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if acc.ID != id {
		t.Fatalf("login returned wrong account: %s vs %s", acc.ID, id)
	}

	if _, err := dir.Login(ctx, "luna@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := dir.Login(ctx, "ghost@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestValidatePasswordBounds(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversized password, got %v", err)
	}
	if err := ValidatePassword("secret123"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestVerifyPasswordMapsMismatch(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "secret123"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty hash, got %v", err)
	}
}

func TestDirectoryCreateValidation(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(NewInMemory(), newTokens(t))

	if _, err := dir.CreateUser(ctx, "not-an-email", "secret123"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := dir.CreateUser(ctx, "a@x.com", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}

	if _, err := dir.CreateUser(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := dir.CreateUser(ctx, "A@X.com", "secret123"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestDirectoryUpdateCredentials(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	dir := NewDirectory(store, newTokens(t))

	id, err := dir.CreateUser(ctx, "a@x.com", "secret123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newEmail := "b@x.com"
	newPassword := "changed-secret"
	if err := dir.UpdateCredentials(ctx, id, CredentialUpdate{Email: &newEmail, Password: &newPassword}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := dir.Login(ctx, "b@x.com", "changed-secret"); err != nil {
		t.Fatalf("login after update: %v", err)
	}
	if _, err := dir.Login(ctx, "a@x.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old credentials must stop working, got %v", err)
	}

	// Empty update is a no-op.
	if err := dir.UpdateCredentials(ctx, id, CredentialUpdate{}); err != nil {
		t.Fatalf("zero update: %v", err)
	}
}

func TestDirectoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	var cascaded string
	store.OnDelete = func(userID string) { cascaded = userID }
	dir := NewDirectory(store, newTokens(t))

	id, err := dir.CreateUser(ctx, "a@x.com", "secret123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := dir.DeleteUser(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if cascaded != id {
		t.Fatalf("cascade not invoked: %q", cascaded)
	}
	if store.Len() != 0 {
		t.Fatalf("account not removed")
	}
	if err := dir.DeleteUser(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}
