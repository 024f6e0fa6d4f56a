package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"lordre.org/internal/identity"
	"lordre.org/internal/member"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/openapi.yaml",
	"/",
}

type tokenCtxKey struct{}

// ContextWithToken keeps the raw bearer token so privileged handlers can
// forward it to the admin service for re-verification.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// TokenFromContext returns the raw bearer token or "".
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenCtxKey{}).(string); ok {
		return v
	}
	return ""
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.idp == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		sub, err := a.idp.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := member.ContextWithSession(r.Context(), member.Session{
			UserID:          sub.UserID,
			GuardianSupreme: sub.GuardianSupreme,
		})
		ctx = ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
