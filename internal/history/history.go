package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lordre.org/internal/ids"
	"lordre.org/internal/member"
	"lordre.org/internal/obs"
)

var (
	// ErrUnauthenticated is returned when no actor is attached to the
	// calling context.
	ErrUnauthenticated = errors.New("history: unauthenticated")
	// ErrInvalidEntry is returned for malformed entries.
	ErrInvalidEntry = errors.New("history: invalid entry")
)

// ActionType is the closed set of loggable actions.
type ActionType string

const (
	TypeFileCreated      ActionType = "file_created"
	TypeFileUpdated      ActionType = "file_updated"
	TypeFileDeleted      ActionType = "file_deleted"
	TypeJudgmentIssued   ActionType = "judgment_issued"
	TypeStatusChanged    ActionType = "status_changed"
	TypeVoteCast         ActionType = "vote_cast"
	TypeRequestSubmitted ActionType = "request_submitted"
	TypeRequestResolved  ActionType = "request_resolved"
	TypeOpinionCreated   ActionType = "opinion_created"
	TypeEventCreated     ActionType = "event_created"
	TypeRuleCreated      ActionType = "rule_created"
	TypeAlertChanged     ActionType = "alert_changed"
)

var knownTypes = map[ActionType]struct{}{
	TypeFileCreated: {}, TypeFileUpdated: {}, TypeFileDeleted: {},
	TypeJudgmentIssued: {}, TypeStatusChanged: {}, TypeVoteCast: {},
	TypeRequestSubmitted: {}, TypeRequestResolved: {}, TypeOpinionCreated: {},
	TypeEventCreated: {}, TypeRuleCreated: {}, TypeAlertChanged: {},
}

// Valid reports whether the type belongs to the closed set.
func (t ActionType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Entry is one immutable audit record. Entries are never updated or
// deleted; consumers read newest first.
type Entry struct {
	ID          string            `json:"id"`
	Type        ActionType        `json:"type"`
	ActorID     string            `json:"actor_id"`
	ActorName   string            `json:"actor_name,omitempty"`
	TargetID    string            `json:"target_id,omitempty"`
	TargetType  string            `json:"target_type,omitempty"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Store persists entries. Append never fails on duplicate content; there
// is no uniqueness constraint.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// Recent returns up to limit entries newest first, with actor
	// pseudonyms resolved where a profile exists.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Notifier receives at-least-once change notifications for the feed.
type Notifier interface {
	EntryAppended(e Entry)
}

// Logger appends audit entries and serves bounded queries.
type Logger struct {
	store    Store
	notifier Notifier
	queryCap int
	now      func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithNotifier attaches a feed notifier invoked after each append.
func WithNotifier(n Notifier) Option {
	return func(l *Logger) { l.notifier = n }
}

// WithQueryCap bounds the read side to the most recent N entries.
func WithQueryCap(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.queryCap = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

const defaultQueryCap = 200

// NewLogger constructs a Logger over the given store.
func NewLogger(store Store, opts ...Option) *Logger {
	l := &Logger{
		store:    store,
		queryCap: defaultQueryCap,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogOption augments a single entry.
type LogOption func(*Entry)

// WithTarget records the acted-upon entity.
func WithTarget(id, targetType string) LogOption {
	return func(e *Entry) {
		e.TargetID = id
		e.TargetType = targetType
	}
}

// WithMetadata attaches structured key-value context.
func WithMetadata(meta map[string]string) LogOption {
	return func(e *Entry) {
		if len(meta) == 0 {
			return
		}
		e.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			e.Metadata[k] = v
		}
	}
}

// Log appends a new immutable entry attributed to the context's actor.
func (l *Logger) Log(ctx context.Context, t ActionType, description string, opts ...LogOption) (Entry, error) {
	sess, ok := member.SessionFromContext(ctx)
	if !ok {
		return Entry{}, ErrUnauthenticated
	}
	if !t.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown action type %q", ErrInvalidEntry, t)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Entry{}, fmt.Errorf("%w: description is required", ErrInvalidEntry)
	}

	entry := Entry{
		ID:          ids.New(),
		Type:        t,
		ActorID:     sess.UserID,
		Description: description,
		CreatedAt:   l.now().UTC(),
	}
	for _, opt := range opts {
		opt(&entry)
	}

	if err := l.store.Append(ctx, &entry); err != nil {
		return Entry{}, err
	}
	l.emit(entry)
	if l.notifier != nil {
		l.notifier.EntryAppended(entry)
	}
	return entry, nil
}

// Filter narrows a history query. Zero values match everything.
type Filter struct {
	Type   ActionType
	Search string
}

// Query returns up to limit entries newest first. Filtering runs client
// side over a page bounded by the query cap; search matches the
// description and resolved actor name case-insensitively.
func (l *Logger) Query(ctx context.Context, f Filter, limit int) ([]Entry, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidEntry, f.Type)
	}
	if limit <= 0 || limit > l.queryCap {
		limit = l.queryCap
	}

	page, err := l.store.Recent(ctx, l.queryCap)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Entry, 0, limit)
	for _, e := range page {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.ActorName), needle) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// emit writes a JSON audit line for operators, mirroring the persisted
// entry. Best effort.
func (l *Logger) emit(e Entry) {
	line := map[string]any{
		"ts":          e.CreatedAt.Format(time.RFC3339Nano),
		"type":        "audit",
		"event":       string(e.Type),
		"actor_id":    e.ActorID,
		"description": e.Description,
	}
	if e.TargetID != "" {
		line["target_id"] = e.TargetID
		line["target_type"] = e.TargetType
	}
	if len(e.Metadata) > 0 {
		line["fields"] = e.Metadata
	}
	obs.LogEvent(line)
}
