package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [goal-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a goal",
	Long: `Delete a goal by its ID. The goal is hidden from every list but can be
brought back with 'goalpost undo'.

Examples:
  goalpost delete abc123
  goalpost rm abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var undoCmd = &cobra.Command{
	Use:   "undo [goal-id]",
	Short: "Restore a deleted goal",
	Long: `Restore a goal removed with 'goalpost delete'. Deleted goals are not
listed, so pass the full ID printed by delete.

Examples:
  goalpost undo 6f1c2a7e-0d4b-4b8e-9a51-3c2f0e8d1b90`,
	Args: cobra.ExactArgs(1),
	RunE: runUndo,
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
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
	if _, err := b.repo.SoftDelete(ctx, cfg.OwnerID, g.ID); err != nil {
		return failure("delete goal", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🗑️  Deleted: \"%s\"\n", g.Content)
	fmt.Fprintf(out, "   Undo with: goalpost undo %s\n", g.ID)
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}
	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	g, err := resolveDeletedGoal(ctx, b.repo, cfg.OwnerID, args[0])
	if err != nil {
		return err
	}
	g, err = b.repo.UndoDelete(ctx, cfg.OwnerID, g.ID)
	if err != nil {
		return failure("restore goal", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "↩ Restored: \"%s\"\n", g.Content)
	return nil
}
