package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lordre.org/internal/identity"
	"lordre.org/internal/member"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	acc, err := a.idp.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	// The guardian capability is pinned into the token at login; writes
	// re-verify against stored assignments regardless.
	guardian, err := a.roles.HasRole(r.Context(), acc.ID, member.RoleGuardianSupreme)
	if err != nil {
		guardian = false
	}

	token, expiresAt, err := a.idp.Mint(acc.ID, guardian)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    acc.ID,
	})
}

// handleAccess resolves the caller's access flags from its session.
func (a *API) handleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sess, _ := member.SessionFromContext(r.Context())
	access := a.resolver.Resolve(r.Context(), sess)
	writeJSON(w, http.StatusOK, access)
}
