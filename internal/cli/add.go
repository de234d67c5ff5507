package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/tui"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Post a new goal",
	Long: `Post a new goal. It starts as DoingIt.

Examples:
  goalpost add "Run 5k"
  goalpost add "Ship the release" --due 2024-06-01T18:00
  goalpost add "Read 20 pages" -t daily -d "2024-06-01 23:00"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addDue  string
	addType string
)

func init() {
	addCmd.Flags().StringVarP(&addDue, "due", "d", "", "Deadline (RFC3339, '2006-01-02 15:04' in your time zone, or epoch millis)")
	addCmd.Flags().StringVarP(&addType, "type", "t", string(model.TypeOneTime), "Goal type (OneTime, Daily, Weekly)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := requireOwner(cfg); err != nil {
		return err
	}
	goalType, err := model.ParseType(addType)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	draft := goals.Draft{
		Content:     strings.Join(args, " "),
		Type:        goalType,
		DisplayName: cfg.DisplayName,
		Nick:        cfg.Nick,
	}
	if addDue != "" {
		draft.Deadline = parseDeadlineArg(addDue)
	}

	g, err := b.repo.Create(ctx, cfg.OwnerID, draft)
	if err != nil {
		return failure("add goal", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Posted [%s]: \"%s\" (%s) %s\n",
		g.Type.Label(), g.Content, shortID(g.ID), tui.Countdown(g, b.repo.Clock().Now()))
	return nil
}
