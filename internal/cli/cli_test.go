package cli

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/existflow/goalpost/internal/config"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command against a fresh memory store and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func setup(t *testing.T, owner string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOALPOST_STORE", config.StoreMemory)
	t.Setenv("GOALPOST_OWNER", owner)
	t.Setenv("GOALPOST_REFRESH_INTERVAL", "0")

	memOnce = sync.Once{}
	mem = nil
}

var idPattern = regexp.MustCompile(`goalpost undo (\S+)`)

func TestAddListDeleteUndo(t *testing.T) {
	setup(t, "alex")

	out, err := execute(t, "add", "Run", "5k", "--due", "2099-01-01T10:00:00Z", "-t", "daily")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, `"Run 5k"`) || !strings.Contains(out, "[Daily]") {
		t.Fatalf("add output = %q", out)
	}

	if _, err := execute(t, "add", "Read a book"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Everyone (2 active)") {
		t.Fatalf("list output = %q", out)
	}

	out, err = execute(t, "list", "--mine", "--type", "daily")
	if err != nil {
		t.Fatalf("list --mine: %v", err)
	}
	if !strings.Contains(out, "Run 5k") || strings.Contains(out, "Read a book") {
		t.Fatalf("filtered list output = %q", out)
	}

	goals, err := mem.ScanByOwner(context.Background(), "alex", store.NotDeleted())
	if err != nil || len(goals) != 2 {
		t.Fatalf("scan = %v, %v", goals, err)
	}
	var target model.Goal
	for _, g := range goals {
		if g.Content == "Read a book" {
			target = g
		}
	}

	out, err = execute(t, "delete", target.ID[:8])
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	m := idPattern.FindStringSubmatch(out)
	if m == nil || m[1] != target.ID {
		t.Fatalf("delete output = %q", out)
	}

	out, _ = execute(t, "list")
	if strings.Contains(out, "Read a book") {
		t.Fatalf("deleted goal still listed: %q", out)
	}

	if _, err := execute(t, "undo", target.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	out, _ = execute(t, "list")
	if !strings.Contains(out, "Read a book") {
		t.Fatalf("restored goal missing: %q", out)
	}
}

func TestUndoByShortID(t *testing.T) {
	setup(t, "kim")

	if _, err := execute(t, "add", "Stretch"); err != nil {
		t.Fatalf("add: %v", err)
	}
	goals, _ := mem.ScanByOwner(context.Background(), "kim", store.NotDeleted())
	id := goals[0].ID

	if _, err := execute(t, "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := execute(t, "undo", "zzzzzzzz"); err == nil {
		t.Fatal("expected unknown id to fail")
	}
	out, err := execute(t, "undo", id[:8])
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !strings.Contains(out, "Restored") {
		t.Fatalf("undo output = %q", out)
	}
	g, _ := mem.Get(context.Background(), "kim", id)
	if g.Deleted {
		t.Error("goal still deleted after undo by prefix")
	}
}

func TestStatusAndEdit(t *testing.T) {
	setup(t, "sam")

	if _, err := execute(t, "add", "Write", "tests"); err != nil {
		t.Fatalf("add: %v", err)
	}
	goals, _ := mem.ScanByOwner(context.Background(), "sam", store.NotDeleted())
	id := goals[0].ID

	out, err := execute(t, "status", id, "need help")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Asking for help") {
		t.Fatalf("status output = %q", out)
	}

	if _, err := execute(t, "status", id, "Maybe"); err == nil {
		t.Fatal("expected invalid status to fail")
	}

	out, err = execute(t, "done", id)
	if err != nil || !strings.Contains(out, "Completed") {
		t.Fatalf("done: %q, %v", out, err)
	}

	out, err = execute(t, "edit", id, "--content", "Write more tests")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "Write more tests") || !strings.Contains(out, "[Done]") {
		t.Fatalf("edit output = %q", out)
	}

	if _, err := execute(t, "edit", id); err == nil {
		t.Fatal("expected edit without changes to fail")
	}
	if _, err := execute(t, "edit", id, "--due", "next tuesday"); err == nil {
		t.Fatal("expected unparseable deadline to fail")
	}
}

func TestResolveGoalUnknown(t *testing.T) {
	setup(t, "kim")

	_, err := execute(t, "done", "nope")
	if err == nil || !strings.Contains(err.Error(), "goal not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestProfileAndBackfill(t *testing.T) {
	setup(t, "lee")

	if _, err := execute(t, "add", "Stretch"); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := execute(t, "profile", "--name", "Lee Park", "--nick", "lp")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !strings.Contains(out, "1 goal(s) updated") {
		t.Fatalf("profile output = %q", out)
	}

	out, _ = execute(t, "list")
	if !strings.Contains(out, "lp") {
		t.Fatalf("nick not shown: %q", out)
	}

	out, err = execute(t, "backfill")
	if err != nil || !strings.Contains(out, "Rebuilt 1") {
		t.Fatalf("backfill: %q, %v", out, err)
	}
}

func TestConfigSet(t *testing.T) {
	setup(t, "ana")

	out, err := execute(t, "config", "set", "undo_window", "10s")
	if err != nil || !strings.Contains(out, "undo_window = 10s") {
		t.Fatalf("config set: %q, %v", out, err)
	}

	loaded, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.UndoWindow.String() != "10s" {
		t.Fatalf("saved undo window = %s", loaded.UndoWindow)
	}

	if _, err := execute(t, "config", "set", "undo_window", "0s"); err == nil {
		t.Fatal("expected negative undo window to be rejected")
	}
	if _, err := execute(t, "config", "set", "colour", "blue"); err == nil {
		t.Fatal("expected unknown key to fail")
	}

	out, err = execute(t, "config")
	if err != nil || !strings.Contains(out, "undo_window") {
		t.Fatalf("config show: %q, %v", out, err)
	}
}

func TestMissingOwner(t *testing.T) {
	setup(t, "")

	if _, err := execute(t, "add", "Anything"); err == nil || !strings.Contains(err.Error(), "no owner configured") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseDeadlineArg(t *testing.T) {
	if v, ok := parseDeadlineArg("1700000000000").(int64); !ok || v != 1700000000000 {
		t.Errorf("millis = %#v", parseDeadlineArg("1700000000000"))
	}
	if v, ok := parseDeadlineArg("2024-06-01").(string); !ok || v != "2024-06-01" {
		t.Errorf("text = %#v", parseDeadlineArg("2024-06-01"))
	}
}
