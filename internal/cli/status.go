package cli

import (
	"context"
	"fmt"

	"github.com/existflow/goalpost/internal/model"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [goal-id] [status]",
	Short: "Set a goal's status",
	Long: `Set a goal's status to DoingIt, NeedHelp or Done.

Examples:
  goalpost status abc123 NeedHelp
  goalpost status abc123 "doing it"`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

var doneCmd = &cobra.Command{
	Use:   "done [goal-id]",
	Short: "Mark a goal as done",
	Long: `Mark a goal as Done.

Examples:
  goalpost done abc123
  goalpost done abc123 --undo`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

var doneUndo bool

func init() {
	doneCmd.Flags().BoolVar(&doneUndo, "undo", false, "Set the goal back to DoingIt")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := model.ParseStatus(args[1])
	if err != nil {
		return err
	}
	return setStatus(cmd, args[0], status)
}

func runDone(cmd *cobra.Command, args []string) error {
	status := model.StatusDone
	if doneUndo {
		status = model.StatusDoingIt
	}
	return setStatus(cmd, args[0], status)
}

func setStatus(cmd *cobra.Command, ref string, status model.Status) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}
	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	g, err := resolveGoal(ctx, b.repo, cfg.OwnerID, ref)
	if err != nil {
		return err
	}
	g, err = b.repo.SetStatus(ctx, cfg.OwnerID, g.ID, status)
	if err != nil {
		return failure("update goal", err)
	}

	out := cmd.OutOrStdout()
	switch g.Status {
	case model.StatusDone:
		fmt.Fprintf(out, "✓ Completed: \"%s\"\n", g.Content)
	case model.StatusNeedHelp:
		fmt.Fprintf(out, "? Asking for help: \"%s\"\n", g.Content)
	default:
		fmt.Fprintf(out, "○ Doing it: \"%s\"\n", g.Content)
	}
	return nil
}
