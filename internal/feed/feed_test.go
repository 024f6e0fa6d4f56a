package feed

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"lordre.org/internal/history"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Subscribe(ctx)
	f.Publish(Event{ID: "e1", Description: "first"})

	select {
	case evt := <-ch:
		if evt.ID != "e1" {
			t.Fatalf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := f.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed after cancel")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Publish(Event{ID: "spam"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestEventMarshalsSnakeCase(t *testing.T) {
	data, err := json.Marshal(Event{
		ID:          "01ABC",
		Type:        string(history.TypeAlertChanged),
		ActorName:   "Ombre",
		Description: "alert state changed",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "type", "actor_name", "description", "created_at"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing %q in %s", key, data)
		}
	}
	for key := range fields {
		if strings.ToLower(key) != key {
			t.Fatalf("field %q is not snake_case", key)
		}
	}
}

func TestEntryAppendedMapsHistoryEntry(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Subscribe(ctx)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.EntryAppended(history.Entry{
		ID:          "01ABC",
		Type:        history.TypeAlertChanged,
		ActorName:   "Ombre",
		Description: "alert state changed from normal to crise",
		CreatedAt:   created,
	})

	select {
	case evt := <-ch:
		if evt.Type != string(history.TypeAlertChanged) || evt.ActorName != "Ombre" || !evt.CreatedAt.Equal(created) {
			t.Fatalf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
