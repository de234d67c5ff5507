package fsstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func openEmulator(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := Open(context.Background(), "goalpost-test", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOwnerCollection(t *testing.T) {
	s := openEmulator(t)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()

	due := epoch.Add(time.Hour)
	id, err := s.Put(ctx, owner, model.Goal{Content: "read", Deadline: &due, Status: model.StatusDoingIt,
		Type: model.TypeDaily, CreatedAt: epoch, UpdatedAt: epoch})
	if err != nil {
		t.Fatal(err)
	}

	g, err := s.Get(ctx, owner, id)
	if err != nil {
		t.Fatal(err)
	}
	if g.ID != id || g.OwnerID != owner || g.Deadline == nil || !g.Deadline.Equal(due) {
		t.Errorf("got %+v", g)
	}

	later := epoch.Add(time.Minute)
	err = s.Patch(ctx, owner, id, store.Fields{
		store.FieldStatus:    model.StatusDone,
		store.FieldDeadline:  (*time.Time)(nil),
		store.FieldUpdatedAt: later,
	}, &store.Precondition{UpdatedAt: epoch})
	if err != nil {
		t.Fatal(err)
	}
	g, _ = s.Get(ctx, owner, id)
	if g.Status != model.StatusDone || g.Deadline != nil || !g.UpdatedAt.Equal(later) {
		t.Errorf("patched %+v", g)
	}

	err = s.Patch(ctx, owner, id, store.Fields{store.FieldContent: "x"}, &store.Precondition{UpdatedAt: epoch})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale patch: %v", err)
	}
	err = s.Patch(ctx, owner, "missing", store.Fields{store.FieldContent: "x"}, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}

	s.Patch(ctx, owner, id, store.Fields{store.FieldDeleted: true}, nil)
	live, err := s.ScanByOwner(ctx, owner, store.NotDeleted())
	if err != nil || len(live) != 0 {
		t.Errorf("live = %+v, %v", live, err)
	}
}

func TestPublicCollection(t *testing.T) {
	s := openEmulator(t)
	ctx := context.Background()
	id := "g-" + uuid.NewString()

	if err := s.PatchPublic(ctx, id, store.Fields{store.FieldStatus: model.StatusDone}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("patch missing: %v", err)
	}

	g := model.Goal{ID: id, OwnerID: "u1", Content: "x", Status: model.StatusDoingIt, Type: model.TypeOneTime, CreatedAt: time.Now().UTC()}
	if err := s.PutPublic(ctx, g); err != nil {
		t.Fatal(err)
	}
	if err := s.PatchPublic(ctx, id, store.Fields{store.FieldStatus: model.StatusNeedHelp}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ScanGlobal(ctx, store.NotDeleted(), store.NewestFirst())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range list {
		if p.ID == id {
			found = p.Status == model.StatusNeedHelp
		}
	}
	if !found {
		t.Errorf("projection %s missing or stale in %d results", id, len(list))
	}
}

func TestToUpdates(t *testing.T) {
	due := epoch.Add(time.Hour)
	updates, err := toUpdates(store.Fields{
		store.FieldStatus:   model.StatusNeedHelp,
		store.FieldDeadline: &due,
		store.FieldContent:  "x",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 3 || updates[0].Path != "content" || updates[1].Path != "deadline" || updates[2].Path != "status" {
		t.Fatalf("updates = %+v", updates)
	}
	if v, ok := updates[1].Value.(time.Time); !ok || !v.Equal(due) {
		t.Errorf("deadline value = %#v", updates[1].Value)
	}
	if updates[2].Value != "NeedHelp" {
		t.Errorf("status value = %#v", updates[2].Value)
	}

	cleared, _ := toUpdates(store.Fields{store.FieldDeadline: (*time.Time)(nil)})
	if cleared[0].Value != nil {
		t.Errorf("cleared deadline = %#v", cleared[0].Value)
	}

	if _, err := toUpdates(store.Fields{store.FieldStatus: "Done"}); err == nil {
		t.Error("untyped status accepted")
	}
}

func TestDocRoundTrip(t *testing.T) {
	due := epoch.Add(time.Hour).In(time.FixedZone("X", 3600))
	g := model.Goal{ID: "g1", OwnerID: "u1", Content: "x", Deadline: &due, Status: model.StatusDone,
		Type: model.TypeWeekly, CreatedAt: epoch, UpdatedAt: epoch, Nick: "n"}

	back := toDoc(g).goal("g1")
	if back.Deadline.Location() != time.UTC || !back.Deadline.Equal(due) || back.Status != g.Status || back.Nick != "n" {
		t.Errorf("round trip = %+v", back)
	}
}
