package sync

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/existflow/goalpost/internal/clock"
	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
	"github.com/existflow/goalpost/internal/store/memstore"
	"github.com/existflow/goalpost/server"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	ts := httptest.NewServer(server.New(ms, logger.Nop()).Router())
	t.Cleanup(ts.Close)
	return ts, ms
}

func TestClientStoreContract(t *testing.T) {
	ts, _ := newTestServer(t)
	c := NewClient(ts.URL+"/", "u1")
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatal(err)
	}

	due := epoch.Add(time.Hour)
	id, err := c.Put(ctx, "u1", model.Goal{Content: "read", Deadline: &due, Status: model.StatusDoingIt,
		Type: model.TypeWeekly, CreatedAt: epoch, UpdatedAt: epoch})
	if err != nil {
		t.Fatal(err)
	}

	g, err := c.Get(ctx, "u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if g.ID != id || g.OwnerID != "u1" || g.Deadline == nil || !g.Deadline.Equal(due) || g.Type != model.TypeWeekly {
		t.Errorf("got %+v", g)
	}

	err = c.Patch(ctx, "u1", id, store.Fields{store.FieldDeadline: (*time.Time)(nil), store.FieldUpdatedAt: epoch.Add(time.Minute)},
		&store.Precondition{UpdatedAt: epoch})
	if err != nil {
		t.Fatal(err)
	}
	if g, _ := c.Get(ctx, "u1", id); g.Deadline != nil {
		t.Errorf("deadline not cleared: %v", g.Deadline)
	}

	err = c.Patch(ctx, "u1", id, store.Fields{store.FieldContent: "x"}, &store.Precondition{UpdatedAt: epoch})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale patch: %v", err)
	}
	if _, err := c.Get(ctx, "u1", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if _, err := c.Get(ctx, "u2", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign collection: %v", err)
	}

	list, err := c.ScanByOwner(ctx, "u1", store.NotDeleted())
	if err != nil || len(list) != 1 {
		t.Errorf("scan: %v %v", list, err)
	}
}

func TestRepositoryOverHTTP(t *testing.T) {
	ts, ms := newTestServer(t)
	clk := clock.NewFake(epoch)
	repo := goals.NewRepository(NewClient(ts.URL, "u1"), goals.WithClock(clk), goals.WithLogger(logger.Nop()))
	ctx := context.Background()

	g, err := repo.Create(ctx, "u1", goals.Draft{Content: "ship v1", Nick: "arkk"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ms.Public(g.ID); !ok {
		t.Fatal("projection not written over HTTP")
	}

	clk.Advance(time.Minute)
	if _, err := repo.SetStatus(ctx, "u1", g.ID, model.StatusNeedHelp); err != nil {
		t.Fatal(err)
	}
	updated, err := repo.Update(ctx, "u1", g.ID, goals.Patch{Deadline: clk.Now().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != model.StatusDoingIt {
		t.Errorf("status = %s", updated.Status)
	}

	all, err := repo.ListAll(ctx)
	if err != nil || len(all) != 1 || all[0].Nick != "arkk" || all[0].Status != model.StatusDoingIt {
		t.Errorf("ListAll = %+v, %v", all, err)
	}

	if _, err := repo.SoftDelete(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	if mine, _ := repo.ListByOwner(ctx, "u1"); len(mine) != 0 {
		t.Errorf("deleted goal listed: %+v", mine)
	}

	other := goals.NewRepository(NewClient(ts.URL, "u2"), goals.WithLogger(logger.Nop()))
	if _, err := other.UndoDelete(ctx, "u1", g.ID); !errors.Is(err, goals.ErrNotOwnerOrNotFound) {
		t.Errorf("foreign undo: %v", err)
	}
}

func TestRepositoryOverHTTPServerDown(t *testing.T) {
	ts, _ := newTestServer(t)
	url := ts.URL
	ts.Close()

	repo := goals.NewRepository(NewClient(url, "u1"), goals.WithLogger(logger.Nop()))
	_, err := repo.Create(context.Background(), "u1", goals.Draft{Content: "x"})
	if !errors.Is(err, goals.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want RemoteUnavailable", err)
	}
}
