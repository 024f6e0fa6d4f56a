package systemstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"lordre.org/internal/history"
	"lordre.org/internal/member"
)

func guardianCtx(id string) context.Context {
	return member.ContextWithSession(context.Background(), member.Session{UserID: id, GuardianSupreme: true})
}

func newFixture(t *testing.T) (*Manager, *InMemory, *history.InMemory, *member.InMemory) {
	t.Helper()
	store := NewInMemory()
	store.Seed(State{Alert: AlertNormal, ChangedBy: "seed", ChangedAt: time.Now().UTC()})
	roles := member.NewInMemory()
	hist := history.NewInMemory()
	mgr := NewManager(store, roles, history.NewLogger(hist))
	return mgr, store, hist, roles
}

func TestReadUnseeded(t *testing.T) {
	mgr := NewManager(NewInMemory(), member.NewInMemory(), history.NewLogger(history.NewInMemory()))
	if _, err := mgr.Read(context.Background()); !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
}

func TestUpdateRejectsNonGuardian(t *testing.T) {
	mgr, store, hist, roles := newFixture(t)
	if err := roles.Assign(context.Background(), "arc", member.RoleArchonte); err != nil {
		t.Fatalf("assign: %v", err)
	}

	before, _ := store.Read(context.Background())
	_, _, err := mgr.Update(guardianCtx("arc"), "arc", AlertCrise, "panic")
	if !errors.Is(err, member.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	after, _ := store.Read(context.Background())
	if after != before {
		t.Fatalf("rejected update must not mutate state: %+v -> %+v", before, after)
	}
	if hist.Len() != 0 {
		t.Fatalf("rejected update must not log history")
	}
}

func TestUpdateReplacesAndLogs(t *testing.T) {
	mgr, store, hist, roles := newFixture(t)
	if err := roles.Assign(context.Background(), "g1", member.RoleGuardianSupreme); err != nil {
		t.Fatalf("assign: %v", err)
	}

	st, warn, err := mgr.Update(guardianCtx("g1"), "g1", AlertVigilance, "stay sharp")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if st.Alert != AlertVigilance || st.Message != "stay sharp" || st.ChangedBy != "g1" {
		t.Fatalf("unexpected state: %+v", st)
	}

	entries, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Type != history.TypeAlertChanged {
		t.Fatalf("unexpected entry type: %s", e.Type)
	}
	if e.Metadata["from"] != string(AlertNormal) || e.Metadata["to"] != string(AlertVigilance) {
		t.Fatalf("metadata must carry prior and new labels: %+v", e.Metadata)
	}

	// Omitted message clears the prior one: full overwrite, not a merge.
	st, _, err = mgr.Update(guardianCtx("g1"), "g1", AlertNormal, "")
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if st.Message != "" {
		t.Fatalf("message must be cleared on overwrite: %q", st.Message)
	}
	stored, _ := store.Read(context.Background())
	if stored != st {
		t.Fatalf("returned state must match stored: %+v vs %+v", st, stored)
	}
}

type failingHistoryStore struct{}

func (failingHistoryStore) Append(ctx context.Context, e *history.Entry) error {
	return errors.New("history unavailable")
}

func (failingHistoryStore) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return nil, nil
}

func TestUpdateCommitsDespiteHistoryFailure(t *testing.T) {
	store := NewInMemory()
	store.Seed(State{Alert: AlertNormal})
	roles := member.NewInMemory()
	if err := roles.Assign(context.Background(), "g1", member.RoleGuardianSupreme); err != nil {
		t.Fatalf("assign: %v", err)
	}
	mgr := NewManager(store, roles, history.NewLogger(failingHistoryStore{}))

	st, warn, err := mgr.Update(guardianCtx("g1"), "g1", AlertCrise, "")
	if err != nil {
		t.Fatalf("update must commit despite audit failure: %v", err)
	}
	if warn == nil {
		t.Fatal("audit failure must be surfaced as a warning")
	}
	if st.Alert != AlertCrise {
		t.Fatalf("state not committed: %+v", st)
	}
	stored, _ := store.Read(context.Background())
	if stored.Alert != AlertCrise {
		t.Fatalf("stored state not committed: %+v", stored)
	}
}

func TestUpdateValidatesInput(t *testing.T) {
	mgr, _, _, roles := newFixture(t)
	if err := roles.Assign(context.Background(), "g1", member.RoleGuardianSupreme); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, _, err := mgr.Update(guardianCtx("g1"), "g1", Alert("meltdown"), ""); !errors.Is(err, member.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := mgr.Update(guardianCtx("g1"), "", AlertNormal, ""); !errors.Is(err, member.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty actor, got %v", err)
	}
}
