package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/goalpost/internal/logger"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Set the name shown next to your goals",
	Long: `Save your display name and nick and push them onto every goal you have
posted, including the shared list.

Examples:
  goalpost profile --name "Alex Doe" --nick alex`,
	RunE: runProfile,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild the shared list entries for your goals",
	Long: `Rewrite the shared-list copy of every goal you own from your own records.
Use it when goals are missing from 'goalpost list' but show up in 'goalpost list --mine'.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var (
	profileName string
	profileNick string
)

func init() {
	profileCmd.Flags().StringVarP(&profileName, "name", "n", "", "Display name")
	profileCmd.Flags().StringVar(&profileNick, "nick", "", "Short nickname")
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}
	if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("nick") {
		return errors.New("nothing to change, pass --name or --nick")
	}
	if cmd.Flags().Changed("name") {
		cfg.DisplayName = profileName
	}
	if cmd.Flags().Changed("nick") {
		cfg.Nick = profileNick
	}
	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config", logger.F("error", err))
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := b.repo.UpdateProfile(ctx, cfg.OwnerID, cfg.DisplayName, cfg.Nick)
	if err != nil {
		return failure("update profile", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile saved, %d goal(s) updated\n", n)
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}
	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := b.repo.Backfill(ctx, cfg.OwnerID)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ Rebuilt %d entries with errors\n", n)
		return fmt.Errorf("failed to backfill: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Rebuilt %d shared-list entries\n", n)
	return nil
}
