package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims minted for a session.
type Claims struct {
	GuardianSupreme bool `json:"guardian,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs a token signer/verifier.
func NewTokens(secret, issuer string, ttl time.Duration, opts ...TokenOption) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("identity: token secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("identity: token issuer is required")
	}
	if ttl <= 0 {
		return nil, errors.New("identity: token ttl must be positive")
	}
	t := &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Mint signs a session token for the user. The guardian flag is the
// session-level capability carried for read-side resolution.
func (t *Tokens) Mint(userID string, guardian bool) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("identity: userID is required")
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		GuardianSupreme: guardian,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and required claims and returns the
// subject.
func (t *Tokens) Verify(raw string) (Subject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Subject{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{},
		func(tok *jwt.Token) (any, error) {
			if tok.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return t.secret, nil
		},
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Subject{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Subject{}, ErrInvalidToken
	}
	return Subject{
		UserID:          claims.Subject,
		GuardianSupreme: claims.GuardianSupreme,
	}, nil
}
