package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/tui"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [goal-id]",
	Short: "Edit a goal's text or deadline",
	Long: `Edit a goal's text or deadline. Moving the deadline into the future
puts a goal that is not Done back to DoingIt.

Examples:
  goalpost edit abc123 --content "Run 10k"
  goalpost edit abc123 --due 2024-06-02T09:00
  goalpost edit abc123 --clear-due`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var (
	editContent  string
	editDue      string
	editClearDue bool
)

func init() {
	editCmd.Flags().StringVarP(&editContent, "content", "c", "", "New goal text")
	editCmd.Flags().StringVarP(&editDue, "due", "d", "", "New deadline")
	editCmd.Flags().BoolVar(&editClearDue, "clear-due", false, "Remove the deadline")
}

func runEdit(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}

	var p goals.Patch
	if cmd.Flags().Changed("content") {
		c := editContent
		p.Content = &c
	}
	switch {
	case editClearDue && editDue != "":
		return errors.New("--due and --clear-due cannot be combined")
	case editClearDue:
		p.ClearDeadline = true
	case editDue != "":
		p.Deadline = parseDeadlineArg(editDue)
	}
	if p.Content == nil && p.Deadline == nil && !p.ClearDeadline {
		return errors.New("nothing to change, pass --content, --due or --clear-due")
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	g, err := resolveGoal(ctx, b.repo, cfg.OwnerID, args[0])
	if err != nil {
		return err
	}
	g, err = b.repo.Update(ctx, cfg.OwnerID, g.ID, p)
	if err != nil {
		return failure("edit goal", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated: \"%s\" [%s] %s\n",
		g.Content, g.Status.Label(), tui.Countdown(g, b.repo.Clock().Now()))
	return nil
}
