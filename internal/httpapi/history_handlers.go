package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lordre.org/internal/history"
)

type historyResponse struct {
	Items []history.Entry `json:"items"`
	AsOf  time.Time       `json:"as_of"`
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := history.Filter{
		Type:   history.ActionType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Search: r.URL.Query().Get("search"),
	}

	items, err := a.history.Query(r.Context(), filter, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

// handleFeed streams appended history entries as Server-Sent Events.
func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.feed == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.feed.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": feed started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ranked, err := a.profiles.Leaderboard(r.Context(), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": ranked,
		"as_of": time.Now().UTC(),
	})
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}
