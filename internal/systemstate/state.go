package systemstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lordre.org/internal/history"
	"lordre.org/internal/member"
	"lordre.org/internal/obs"
)

// ErrNotSeeded is returned when the singleton row is absent. This is a
// bootstrap error, not a normal runtime path.
var ErrNotSeeded = errors.New("system state: not seeded")

// Alert is the global three-level alert enumeration.
type Alert string

const (
	AlertNormal    Alert = "normal"
	AlertVigilance Alert = "vigilance"
	AlertCrise     Alert = "crise"
)

// ParseAlert normalizes and validates an alert label.
func ParseAlert(raw string) (Alert, error) {
	a := Alert(strings.TrimSpace(strings.ToLower(raw)))
	switch a {
	case AlertNormal, AlertVigilance, AlertCrise:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown alert state %q", member.ErrInvalidInput, raw)
}

// State is the single live record gating behavior application-wide.
type State struct {
	Alert     Alert     `json:"alert_state"`
	Message   string    `json:"alert_message,omitempty"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// Store persists the singleton. Replace overwrites the existing row and
// must reject the write when no row exists; it never inserts a second
// one. Implementations re-validate the changer's capability at the row
// level.
type Store interface {
	Read(ctx context.Context) (State, error)
	Replace(ctx context.Context, next State) error
}

// Manager exposes the read and guarded-write operations over the
// singleton.
type Manager struct {
	store   Store
	roles   member.RoleStore
	history *history.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager. The history logger is required: state
// changes are unobservable to auditors unless logged.
func NewManager(store Store, roles member.RoleStore, hist *history.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		roles:   roles,
		history: hist,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the current record.
func (m *Manager) Read(ctx context.Context) (State, error) {
	return m.store.Read(ctx)
}

// Update atomically replaces the singleton. This is a full overwrite: an
// empty message clears any prior message. The actor must hold the
// change-alert-state capability, re-checked here from stored role
// assignments before any write.
//
// A successful replace is committed even if the audit append fails; the
// omission is returned as warn so the caller can surface it, and is
// counted for operators.
func (m *Manager) Update(ctx context.Context, actorID string, alert Alert, message string) (st State, warn error, err error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return State{}, nil, fmt.Errorf("%w: actor is required", member.ErrInvalidInput)
	}
	if _, perr := ParseAlert(string(alert)); perr != nil {
		return State{}, nil, perr
	}

	held, rerr := m.roles.Roles(ctx, actorID)
	if rerr != nil {
		// Fail closed on lookup errors.
		return State{}, nil, fmt.Errorf("%w: requires role %s", member.ErrForbidden, member.RoleGuardianSupreme)
	}
	if aerr := member.Authorize(held, member.CapChangeAlertState); aerr != nil {
		return State{}, nil, aerr
	}

	prior, err := m.store.Read(ctx)
	if err != nil {
		return State{}, nil, err
	}

	next := State{
		Alert:     alert,
		Message:   strings.TrimSpace(message),
		ChangedBy: actorID,
		ChangedAt: m.now().UTC(),
	}
	if err := m.store.Replace(ctx, next); err != nil {
		return State{}, nil, err
	}

	description := fmt.Sprintf("alert state changed from %s to %s", prior.Alert, next.Alert)
	_, lerr := m.history.Log(ctx, history.TypeAlertChanged, description,
		history.WithMetadata(map[string]string{
			"from": string(prior.Alert),
			"to":   string(next.Alert),
		}),
	)
	if lerr != nil {
		obs.HistoryAppendFailed()
		warn = fmt.Errorf("state committed but history append failed: %w", lerr)
	}
	return next, warn, nil
}
