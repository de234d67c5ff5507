package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/existflow/goalpost/internal/model"
)

func openTestCache(t *testing.T) *GoalCache {
	t.Helper()
	addr := os.Getenv("GOALPOST_TEST_REDIS")
	if addr == "" {
		t.Skip("GOALPOST_TEST_REDIS not set")
	}
	c, err := Open(context.Background(), addr, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c.WithPrefix(t.Name())
}

func TestGoalCacheRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()
	c.Invalidate(ctx)

	if _, ok, err := c.GetGlobal(ctx); err != nil || ok {
		t.Fatalf("fresh cache: ok=%v err=%v", ok, err)
	}

	due := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	list := []model.Goal{
		{ID: "g2", OwnerID: "u2", Content: "run", Status: model.StatusDone, Type: model.TypeDaily, Deadline: &due},
		{ID: "g1", OwnerID: "u1", Content: "read", Status: model.StatusDoingIt, Type: model.TypeOneTime},
	}
	if err := c.SetGlobal(ctx, list); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.GetGlobal(ctx)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ID != "g2" || got[1].Deadline != nil || !got[0].Deadline.Equal(due) {
		t.Errorf("got %+v", got)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.GetGlobal(ctx); ok {
		t.Error("hit after invalidate")
	}
}

func TestGoalCacheEmptyListIsAHit(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.SetGlobal(ctx, nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.GetGlobal(ctx)
	if err != nil || !ok || len(got) != 0 {
		t.Errorf("got %v ok=%v err=%v", got, ok, err)
	}
	c.Invalidate(ctx)
}
