package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

func TestPutGetPatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Unix(1000, 0).UTC()

	id, err := s.Put(ctx, "u1", model.Goal{Content: "ship v1", Status: model.StatusDoingIt, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("store did not assign an id")
	}

	g, err := s.Get(ctx, "u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if g.ID != id || g.OwnerID != "u1" {
		t.Errorf("Get() = %+v", g)
	}

	if _, err := s.Get(ctx, "u2", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get under another owner: %v, want ErrNotFound", err)
	}

	later := now.Add(time.Minute)
	if err := s.Patch(ctx, "u1", id, store.Fields{store.FieldStatus: model.StatusDone, store.FieldUpdatedAt: later}, &store.Precondition{UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	err = s.Patch(ctx, "u1", id, store.Fields{store.FieldContent: "x"}, &store.Precondition{UpdatedAt: now})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale precondition: %v, want ErrConflict", err)
	}

	if err := s.Patch(ctx, "u1", "missing", store.Fields{store.FieldContent: "x"}, nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("patch missing record: %v, want ErrNotFound", err)
	}
}

func TestScansFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Unix(1000, 0).UTC()

	for i, content := range []string{"a", "b", "c"} {
		g := model.Goal{Content: content, CreatedAt: base.Add(time.Duration(i) * time.Second), Deleted: content == "b"}
		id, err := s.Put(ctx, "u1", g)
		if err != nil {
			t.Fatal(err)
		}
		g.ID = id
		g.OwnerID = "u1"
		if err := s.PutPublic(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := s.ScanByOwner(ctx, "u1", store.NotDeleted())
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].Content != "c" {
		t.Errorf("ScanByOwner = %+v", mine)
	}

	all, err := s.ScanGlobal(ctx, store.NotDeleted(), store.NewestFirst())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Content != "c" || all[1].Content != "a" {
		t.Errorf("ScanGlobal = %+v", all)
	}
}

func TestPatchPublicRequiresProjection(t *testing.T) {
	s := New()
	err := s.PatchPublic(context.Background(), "nope", store.Fields{store.FieldDeleted: true})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("PatchPublic on missing projection: %v", err)
	}
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("backend down")

	s.Fail(OpPut, boom)
	if _, err := s.Put(ctx, "u1", model.Goal{Content: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Put with fault: %v", err)
	}
	s.Heal()
	if _, err := s.Put(ctx, "u1", model.Goal{Content: "x"}); err != nil {
		t.Fatalf("Put after Heal: %v", err)
	}
	if got := s.Calls(OpPut); got != 2 {
		t.Errorf("Calls(put) = %d, want 2", got)
	}
}
