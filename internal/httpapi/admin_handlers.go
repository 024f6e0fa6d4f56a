package httpapi

import (
	"net/http"
	"strings"

	"lordre.org/internal/admin"
)

// adminActionRequest is the envelope for the administrative endpoint.
// The action name selects the operation; unknown names are rejected.
type adminActionRequest struct {
	Action string `json:"action"`

	Email     string `json:"email,omitempty"`
	Password  string `json:"password,omitempty"`
	Pseudonym string `json:"pseudonym,omitempty"`
	Grade     string `json:"grade,omitempty"`

	UserID       string  `json:"userId,omitempty"`
	NewEmail     *string `json:"newEmail,omitempty"`
	NewPassword  *string `json:"newPassword,omitempty"`
	NewPseudonym *string `json:"newPseudonym,omitempty"`
	NewGrade     *string `json:"newGrade,omitempty"`
	NewStatus    *string `json:"newStatus,omitempty"`
}

func (a *API) handleAdminActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token := TokenFromContext(r.Context())
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req adminActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch strings.TrimSpace(req.Action) {
	case "create_user":
		res, err := a.admin.CreateUser(r.Context(), token, admin.CreateUserInput{
			Email:     req.Email,
			Password:  req.Password,
			Pseudonym: req.Pseudonym,
			Grade:     req.Grade,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"userId":  res.UserID,
		})

	case "update_user":
		err := a.admin.UpdateUser(r.Context(), token, admin.UpdateUserInput{
			UserID:    req.UserID,
			Email:     req.NewEmail,
			Password:  req.NewPassword,
			Pseudonym: req.NewPseudonym,
			Grade:     req.NewGrade,
			Status:    req.NewStatus,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
		})

	case "delete_user":
		if err := a.admin.DeleteUser(r.Context(), token, req.UserID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
		})

	default:
		writeError(w, r, http.StatusBadRequest, "unknown action")
	}
}
