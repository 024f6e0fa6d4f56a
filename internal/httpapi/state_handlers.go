package httpapi

import (
	"net/http"

	"lordre.org/internal/member"
	"lordre.org/internal/systemstate"
)

type updateStateRequest struct {
	AlertState   string `json:"alert_state"`
	AlertMessage string `json:"alert_message"`
}

type updateStateResponse struct {
	systemstate.State
	Warning string `json:"warning,omitempty"`
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getState(w, r)
	case http.MethodPut:
		a.updateState(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	st, err := a.state.Read(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// updateState is a full overwrite: an omitted alert_message clears the
// prior one. A commit whose audit append failed still returns 200, with
// the omission surfaced as a warning.
func (a *API) updateState(w http.ResponseWriter, r *http.Request) {
	sess, ok := member.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	var req updateStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := systemstate.ParseAlert(req.AlertState)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	st, warn, err := a.state.Update(r.Context(), sess.UserID, alert, req.AlertMessage)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := updateStateResponse{State: st}
	if warn != nil {
		resp.Warning = warn.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
