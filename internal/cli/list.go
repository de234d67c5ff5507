package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/tui"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List goals",
	Long: `List everyone's goals, or only yours.

Examples:
  goalpost list
  goalpost list --mine
  goalpost list --type daily --sort deadline`,
	RunE: runList,
}

var (
	listMine bool
	listType string
	listSort string
)

func init() {
	listCmd.Flags().BoolVarP(&listMine, "mine", "m", false, "Only show your goals")
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "Filter by type (OneTime, Daily, Weekly)")
	listCmd.Flags().StringVarP(&listSort, "sort", "s", "created", "Sort order (created, deadline)")
}

func runList(cmd *cobra.Command, args []string) error {
	var goalType model.Type
	if listType != "" {
		t, err := model.ParseType(listType)
		if err != nil {
			return err
		}
		goalType = t
	}
	if listSort != "created" && listSort != "deadline" {
		return fmt.Errorf("unknown sort %q (use created or deadline)", listSort)
	}
	if listMine {
		if err := requireOwner(cfg); err != nil {
			return err
		}
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var list []model.Goal
	title := "Everyone"
	if listMine {
		title = "My goals"
		list, err = b.repo.ListByOwner(ctx, cfg.OwnerID)
	} else {
		list, err = b.repo.ListAll(ctx)
	}
	if err != nil {
		return failure("list goals", err)
	}

	list = model.FilterByType(list, goalType)
	if listSort == "deadline" {
		goals.SortByDeadline(list)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No goals found. Post one with: goalpost add \"Your goal\"")
		return nil
	}
	printGoals(out, title, list, b.repo.Clock().Now())
	return nil
}

func printGoals(out io.Writer, title string, list []model.Goal, now time.Time) {
	active := 0
	for _, g := range list {
		if g.Status != model.StatusDone {
			active++
		}
	}

	fmt.Fprintf(out, "\n🎯 %s (%d active)\n", title, active)
	fmt.Fprintln(out, strings.Repeat("─", 72))

	for _, g := range list {
		printGoal(out, g, now)
	}
	fmt.Fprintln(out)
}

func printGoal(out io.Writer, g model.Goal, now time.Time) {
	icon := "[ ]"
	switch g.Status {
	case model.StatusDone:
		icon = "[x]"
	case model.StatusNeedHelp:
		icon = "[?]"
	}

	// Truncate content if too long
	content := g.Content
	if len([]rune(content)) > 36 {
		content = string([]rune(content)[:33]) + "..."
	}

	fmt.Fprintf(out, "  %s  %-8s  %-36s  %-10s  %-12s  %s\n",
		icon, shortID(g.ID), content, truncateHandle(g.Handle()), tui.Countdown(g, now), g.Type.Label())
}

func truncateHandle(h string) string {
	if len([]rune(h)) > 10 {
		return string([]rune(h)[:9]) + "…"
	}
	return h
}
