// Package feed fan-outs action history events to live subscribers
// (SSE clients).
package feed

import (
	"context"
	"sync"
	"time"

	"lordre.org/internal/history"
)

// Event is the wire shape pushed to feed subscribers. It carries the
// public fields of a history entry; metadata stays server-side.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ActorName   string    `json:"actor_name,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Feed fan-outs events to all active subscribers.
type Feed struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

var _ history.Notifier = (*Feed)(nil)

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (f *Feed) Publish(evt Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// EntryAppended implements history.Notifier: each appended entry is
// pushed to live subscribers.
func (f *Feed) EntryAppended(e history.Entry) {
	f.Publish(Event{
		ID:          e.ID,
		Type:        string(e.Type),
		ActorName:   e.ActorName,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	})
}
