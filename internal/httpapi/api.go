// Package httpapi is the JSON surface over the access-control core.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"lordre.org/api/spec"
	"lordre.org/internal/admin"
	"lordre.org/internal/config"
	"lordre.org/internal/feed"
	"lordre.org/internal/history"
	"lordre.org/internal/identity"
	"lordre.org/internal/member"
	"lordre.org/internal/obs"
	"lordre.org/internal/systemstate"
)

// Pinger reports storage backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings the backend when one is configured.
type ReadyProbe struct {
	Backend Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Backend == nil {
		return nil
	}
	return rp.Backend.Ping(ctx)
}

// Deps wires the API to the core services.
type Deps struct {
	Ready    ReadyProbe
	Version  string
	Identity *identity.Directory
	Resolver *member.Resolver
	Profiles member.ProfileStore
	Roles    member.RoleStore
	State    *systemstate.Manager
	History  *history.Logger
	Admin    *admin.Service
	Feed     *feed.Feed
	Server   config.ServerConfig
	CORS     config.CORSConfig
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	ready    ReadyProbe
	version  string
	idp      *identity.Directory
	resolver *member.Resolver
	profiles member.ProfileStore
	roles    member.RoleStore
	state    *systemstate.Manager
	history  *history.Logger
	admin    *admin.Service
	feed     *feed.Feed
	server   config.ServerConfig
	cors     config.CORSConfig
}

func New(d Deps) *API {
	a := &API{
		mux:      http.NewServeMux(),
		ready:    d.Ready,
		version:  d.Version,
		idp:      d.Identity,
		resolver: d.Resolver,
		profiles: d.Profiles,
		roles:    d.Roles,
		state:    d.State,
		history:  d.History,
		admin:    d.Admin,
		feed:     d.Feed,
		server:   d.Server,
		cors:     d.CORS,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/access", a.handleAccess)
	a.mux.HandleFunc("/v1/state", a.handleState)
	a.mux.HandleFunc("/v1/history", a.handleHistory)
	a.mux.HandleFunc("/v1/feed", a.handleFeed)
	a.mux.HandleFunc("/v1/leaderboard", a.handleLeaderboard)
	a.mux.HandleFunc("/v1/admin/actions", a.handleAdminActions)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with the middleware chain, metrics outermost.
func (a *API) Handler() http.Handler {
	burst, perSecond := a.server.RateBurst, a.server.RatePerSecond
	if burst <= 0 {
		burst = 20
	}
	if perSecond <= 0 {
		perSecond = 10
	}

	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, burst, perSecond)
	h = CORS(h, a.cors)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "lordre-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "lordre-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps core errors onto the response taxonomy. The
// dependency wrap keeps the underlying message so operators can tell a
// store failure from bad input.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, member.ErrInvalidInput),
		errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, history.ErrInvalidEntry),
		errors.Is(err, admin.ErrDependency):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, history.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, member.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, member.ErrNotFound), errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, member.ErrConflict), errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, systemstate.ErrNotSeeded):
		writeError(w, r, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
