package optimistic

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/existflow/goalpost/internal/clock"
	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store/memstore"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ms    *memstore.Store
	clk   *clock.Fake
	repo  *goals.Repository
	coord *Coordinator
}

func newFixture(t *testing.T, texts ...string) *fixture {
	t.Helper()
	f := &fixture{ms: memstore.New(), clk: clock.NewFake(epoch)}
	f.repo = goals.NewRepository(f.ms, goals.WithClock(f.clk), goals.WithLogger(logger.Nop()), goals.WithLocation(time.UTC))
	f.coord = New(f.repo, "u1", WithClock(f.clk), WithLogger(logger.Nop()), WithLocation(time.UTC))

	ctx := context.Background()
	for _, content := range texts {
		if _, err := f.repo.Create(ctx, "u1", goals.Draft{Content: content}); err != nil {
			t.Fatal(err)
		}
		f.clk.Advance(time.Second)
	}
	if err := f.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}
	return f
}

func contents(view []model.Goal) []string {
	out := make([]string, len(view))
	for i, g := range view {
		out[i] = g.Content
	}
	return out
}

func find(view []model.Goal, content string) (model.Goal, bool) {
	for _, g := range view {
		if g.Content == content {
			return g, true
		}
	}
	return model.Goal{}, false
}

func TestLoadNewestFirst(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	if got := contents(f.coord.Goals()); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("view = %v", got)
	}
}

func TestSetStatusAppliesImmediately(t *testing.T) {
	f := newFixture(t, "a")
	g := f.coord.Goals()[0]

	// Block the store so the optimistic state is observable before the remote call lands
	gate := make(chan struct{})
	blocked := &gatedRepo{Repository: f.repo, gate: gate}
	f.coord.repo = blocked

	done := f.coord.SetStatus(context.Background(), g.ID, model.StatusNeedHelp)
	if got := f.coord.Goals()[0].Status; got != model.StatusNeedHelp {
		t.Errorf("status before remote = %s, want NeedHelp", got)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	stored, _ := f.repo.Get(context.Background(), "u1", g.ID)
	if stored.Status != model.StatusNeedHelp {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestSetStatusRemoteUnavailableRollsBack(t *testing.T) {
	f := newFixture(t, "a", "b")
	before := f.coord.Goals()
	f.ms.Fail(memstore.OpPatch, errors.New("connection refused"))

	err := <-f.coord.SetStatus(context.Background(), before[1].ID, model.StatusDone)
	if !errors.Is(err, goals.ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want RemoteUnavailable", err)
	}
	if after := f.coord.Goals(); !reflect.DeepEqual(after, before) {
		t.Errorf("view not restored:\nbefore %+v\nafter  %+v", before, after)
	}
	if goals.Reason(err) == "" {
		t.Error("no user-facing reason")
	}
}

func TestApplyOptimisticDefaultRollbackRestoresSnapshot(t *testing.T) {
	f := newFixture(t, "a", "b")
	before := f.coord.Goals()

	err := <-f.coord.ApplyOptimistic(context.Background(), Mutation{
		Op:     "clear",
		Apply:  func([]model.Goal) []model.Goal { return nil },
		Remote: func(context.Context) error { return errors.New("nope") },
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if after := f.coord.Goals(); !reflect.DeepEqual(after, before) {
		t.Errorf("view = %+v, want %+v", after, before)
	}
}

func TestValidationNeverReachesStore(t *testing.T) {
	f := newFixture(t, "a")
	g := f.coord.Goals()[0]
	before := f.coord.Goals()
	gets := f.ms.Calls(memstore.OpGet)
	ctx := context.Background()

	if err := <-f.coord.SetStatus(ctx, g.ID, "MISS"); !errors.Is(err, goals.ErrValidation) {
		t.Errorf("SetStatus: %v", err)
	}
	if err := <-f.coord.EditContent(ctx, g.ID, "  "); !errors.Is(err, goals.ErrValidation) {
		t.Errorf("EditContent: %v", err)
	}
	if err := <-f.coord.EditDeadline(ctx, g.ID, "tomorrow-ish"); !errors.Is(err, goals.ErrParse) {
		t.Errorf("EditDeadline: %v", err)
	}
	if err := <-f.coord.SetStatus(ctx, "nope", model.StatusDone); !errors.Is(err, goals.ErrNotOwnerOrNotFound) {
		t.Errorf("unknown id: %v", err)
	}

	if f.ms.Calls(memstore.OpGet) != gets {
		t.Error("invalid input reached the store")
	}
	if !reflect.DeepEqual(f.coord.Goals(), before) {
		t.Error("view changed on invalid input")
	}
}

func TestEditDeadlineForcesDoingItLocally(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	g := f.coord.Goals()[0]

	if err := <-f.coord.SetStatus(ctx, g.ID, model.StatusNeedHelp); err != nil {
		t.Fatal(err)
	}
	if err := <-f.coord.EditDeadline(ctx, g.ID, f.clk.Now().Add(20*time.Minute)); err != nil {
		t.Fatal(err)
	}

	local := f.coord.Goals()[0]
	stored, _ := f.repo.Get(ctx, "u1", g.ID)
	if local.Status != model.StatusDoingIt || stored.Status != model.StatusDoingIt {
		t.Errorf("local=%s stored=%s, want DoingIt", local.Status, stored.Status)
	}
	if local.Deadline == nil || !local.Deadline.Equal(*stored.Deadline) {
		t.Errorf("deadline local=%v stored=%v", local.Deadline, stored.Deadline)
	}

	if err := <-f.coord.EditDeadline(ctx, g.ID, ""); err != nil {
		t.Fatal(err)
	}
	stored, _ = f.repo.Get(ctx, "u1", g.ID)
	if f.coord.Goals()[0].Deadline != nil || stored.Deadline != nil {
		t.Error("deadline not cleared")
	}
}

func TestEditContent(t *testing.T) {
	f := newFixture(t, "draft")
	ctx := context.Background()
	g := f.coord.Goals()[0]

	if err := <-f.coord.EditContent(ctx, g.ID, " final "); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.repo.Get(ctx, "u1", g.ID)
	if f.coord.Goals()[0].Content != "final" || stored.Content != "final" {
		t.Errorf("local=%q stored=%q", f.coord.Goals()[0].Content, stored.Content)
	}
}

func TestCreateInsertsAtFront(t *testing.T) {
	f := newFixture(t, "a")
	g, err := f.coord.Create(context.Background(), goals.Draft{Content: "b"})
	if err != nil {
		t.Fatal(err)
	}
	view := f.coord.Goals()
	if len(view) != 2 || view[0].ID != g.ID {
		t.Errorf("view = %v", contents(view))
	}
}

func TestDeleteAndUndoWithinWindow(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	target, _ := find(f.coord.Goals(), "b")

	if err := <-f.coord.Delete(ctx, target.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := find(f.coord.Goals(), "b"); ok {
		t.Fatal("deleted goal still in view")
	}
	pending, ok := f.coord.UndoPending()
	if !ok || pending.Goal.ID != target.ID || !pending.ExpiresAt.Equal(f.clk.Now().Add(DefaultUndoWindow)) {
		t.Fatalf("pending = %+v %v", pending, ok)
	}

	f.clk.Advance(5 * time.Second)
	if err := <-f.coord.Undo(ctx); err != nil {
		t.Fatal(err)
	}

	view := f.coord.Goals()
	if view[0].ID != target.ID {
		t.Errorf("undone goal not at front: %v", contents(view))
	}
	stored, _ := f.repo.Get(ctx, "u1", target.ID)
	if stored.Deleted {
		t.Error("store still flags the goal deleted")
	}
	if _, ok := f.coord.UndoPending(); ok {
		t.Error("window still open after undo")
	}
	if f.clk.Pending() != 0 {
		t.Errorf("%d timers still armed", f.clk.Pending())
	}
}

func TestUndoAfterWindowExpired(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	target := f.coord.Goals()[0]

	if err := <-f.coord.Delete(ctx, target.ID); err != nil {
		t.Fatal(err)
	}
	f.clk.Advance(6 * time.Second)

	if err := <-f.coord.Undo(ctx); !errors.Is(err, ErrUndoExpired) {
		t.Errorf("err = %v, want ErrUndoExpired", err)
	}
	if len(f.coord.Goals()) != 0 {
		t.Errorf("expired goal back in view: %v", contents(f.coord.Goals()))
	}

	stored, err := f.repo.Get(ctx, "u1", target.ID)
	if err != nil || !stored.Deleted {
		t.Errorf("backend record: %+v, %v", stored, err)
	}
}

func TestNewDeleteExpiresPreviousWindow(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	first, _ := find(f.coord.Goals(), "a")
	second, _ := find(f.coord.Goals(), "b")

	<-f.coord.Delete(ctx, first.ID)
	<-f.coord.Delete(ctx, second.ID)

	pending, ok := f.coord.UndoPending()
	if !ok || pending.Goal.ID != second.ID {
		t.Fatalf("pending = %+v", pending)
	}
	if f.clk.Pending() != 1 {
		t.Errorf("timers = %d, want 1", f.clk.Pending())
	}

	if err := <-f.coord.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := <-f.coord.Undo(ctx); !errors.Is(err, ErrUndoExpired) {
		t.Errorf("second undo: %v", err)
	}

	view := f.coord.Goals()
	if len(view) != 1 || view[0].ID != second.ID {
		t.Errorf("view = %v", contents(view))
	}
	stored, _ := f.repo.Get(ctx, "u1", first.ID)
	if !stored.Deleted {
		t.Error("first delete was cancelled on the backend")
	}
}

func TestDeleteFailureRestoresPosition(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	before := f.coord.Goals()
	f.ms.Fail(memstore.OpPatch, errors.New("offline"))

	err := <-f.coord.Delete(ctx, before[1].ID)
	if !errors.Is(err, goals.ErrRemoteUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(f.coord.Goals(), before) {
		t.Errorf("view = %v, want %v", contents(f.coord.Goals()), contents(before))
	}
	if _, ok := f.coord.UndoPending(); ok {
		t.Error("undo offered for a delete that failed")
	}
	if f.clk.Pending() != 0 {
		t.Error("undo timer left armed")
	}
}

func TestUndoWaitsForDelete(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	target := f.coord.Goals()[0]

	gate := make(chan struct{})
	f.coord.repo = &gatedRepo{Repository: f.repo, gate: gate}

	deleted := f.coord.Delete(ctx, target.ID)
	undone := f.coord.Undo(ctx)
	if len(f.coord.Goals()) != 1 {
		t.Error("undo did not restore the view immediately")
	}
	close(gate)

	if err := <-deleted; err != nil {
		t.Fatal(err)
	}
	if err := <-undone; err != nil {
		t.Fatal(err)
	}
	stored, _ := f.repo.Get(ctx, "u1", target.ID)
	if stored.Deleted {
		t.Error("undo landed before the delete")
	}
}

func TestUndoCancelledWhileDeleteInFlight(t *testing.T) {
	f := newFixture(t, "a")
	target := f.coord.Goals()[0]

	gate := make(chan struct{})
	f.coord.repo = &gatedRepo{Repository: f.repo, gate: gate}

	deleted := f.coord.Delete(context.Background(), target.ID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := <-f.coord.Undo(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("undo err = %v, want context.Canceled", err)
	}
	if n := len(f.coord.Goals()); n != 0 {
		t.Errorf("view has %d goals, want the deleted goal gone", n)
	}

	close(gate)
	if err := <-deleted; err != nil {
		t.Fatal(err)
	}
	stored, _ := f.repo.Get(context.Background(), "u1", target.ID)
	if !stored.Deleted {
		t.Error("store should still hold the goal as deleted")
	}
	if n := len(f.coord.Goals()); n != 0 {
		t.Errorf("view has %d goals after delete landed", n)
	}
}

func TestRefreshHidesPendingDelete(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	target, _ := find(f.coord.Goals(), "a")

	f.coord.repo = &staleRepo{Repository: f.repo, list: f.coord.Goals()}
	<-f.coord.Delete(ctx, target.ID)
	if err := f.coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := find(f.coord.Goals(), "a"); ok {
		t.Error("refresh resurrected a goal inside its undo window")
	}
}

func TestOnChange(t *testing.T) {
	f := newFixture(t, "a")
	var (
		mu    sync.Mutex
		calls [][]model.Goal
	)
	f.coord.SetOnChange(func(view []model.Goal) {
		mu.Lock()
		calls = append(calls, view)
		mu.Unlock()
	})

	<-f.coord.Delete(context.Background(), f.coord.Goals()[0].ID)
	f.clk.Advance(DefaultUndoWindow)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) < 2 {
		t.Fatalf("hook called %d times", len(calls))
	}
	if len(calls[0]) != 0 {
		t.Errorf("first notification = %v", contents(calls[0]))
	}
}

func TestScopeAll(t *testing.T) {
	ms := memstore.New()
	clk := clock.NewFake(epoch)
	repo := goals.NewRepository(ms, goals.WithClock(clk), goals.WithLogger(logger.Nop()))
	ctx := context.Background()
	repo.Create(ctx, "u1", goals.Draft{Content: "mine"})
	clk.Advance(time.Second)
	repo.Create(ctx, "u2", goals.Draft{Content: "theirs"})

	all := New(repo, "u1", WithClock(clk), WithLogger(logger.Nop()), WithScope(ScopeAll))
	if err := all.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := contents(all.Goals()); !reflect.DeepEqual(got, []string{"theirs", "mine"}) {
		t.Errorf("view = %v", got)
	}

	theirs, _ := find(all.Goals(), "theirs")
	if err := <-all.SetStatus(ctx, theirs.ID, model.StatusDone); !errors.Is(err, goals.ErrNotOwnerOrNotFound) {
		t.Errorf("editing another member's goal: %v", err)
	}
	if got, _ := find(all.Goals(), "theirs"); got.Status != model.StatusDoingIt {
		t.Errorf("status = %s, want rolled back", got.Status)
	}
}

// gatedRepo holds every mutation until gate closes
type gatedRepo struct {
	*goals.Repository
	gate chan struct{}
}

func (r *gatedRepo) SetStatus(ctx context.Context, ownerID, id string, s model.Status) (model.Goal, error) {
	<-r.gate
	return r.Repository.SetStatus(ctx, ownerID, id, s)
}

func (r *gatedRepo) SoftDelete(ctx context.Context, ownerID, id string) (model.Goal, error) {
	<-r.gate
	return r.Repository.SoftDelete(ctx, ownerID, id)
}

// staleRepo keeps listing a fixed set of goals, as a lagging store would
type staleRepo struct {
	*goals.Repository
	list []model.Goal
}

func (r *staleRepo) ListByOwner(context.Context, string) ([]model.Goal, error) {
	return r.list, nil
}
