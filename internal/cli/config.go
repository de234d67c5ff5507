package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/existflow/goalpost/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the settings in ~/.goalpost/config.yaml.

Examples:
  goalpost config                      # Show current settings
  goalpost config set owner alex
  goalpost config set store remote
  goalpost config set server_url https://goals.example.com
  goalpost config set undo_window 10s`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

type setting struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

func text(field func(c *config.Config) *string) setting {
	return setting{
		get: func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error { *field(c) = v; return nil },
	}
}

func duration(field func(c *config.Config) *time.Duration) setting {
	return setting{
		get: func(c *config.Config) string { return field(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", v, err)
			}
			*field(c) = d
			return nil
		},
	}
}

var settings = map[string]setting{
	"owner":                 text(func(c *config.Config) *string { return &c.OwnerID }),
	"name":                  text(func(c *config.Config) *string { return &c.DisplayName }),
	"nick":                  text(func(c *config.Config) *string { return &c.Nick }),
	"store":                 text(func(c *config.Config) *string { return &c.Store }),
	"database_path":         text(func(c *config.Config) *string { return &c.DatabasePath }),
	"database_url":          text(func(c *config.Config) *string { return &c.DatabaseURL }),
	"server_url":            text(func(c *config.Config) *string { return &c.ServerURL }),
	"firestore_project":     text(func(c *config.Config) *string { return &c.FirestoreProject }),
	"firestore_credentials": text(func(c *config.Config) *string { return &c.FirestoreCredentials }),
	"redis_addr":            text(func(c *config.Config) *string { return &c.RedisAddr }),
	"time_zone":             text(func(c *config.Config) *string { return &c.TimeZone }),
	"cache_ttl":             duration(func(c *config.Config) *time.Duration { return &c.CacheTTL }),
	"undo_window":           duration(func(c *config.Config) *time.Duration { return &c.UndoWindow }),
	"refresh_interval":      duration(func(c *config.Config) *time.Duration { return &c.RefreshInterval }),
}

func settingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, _ := config.Path()
	fmt.Fprintf(out, "⚙  %s\n", path)
	for _, k := range settingKeys() {
		v := settings[k].get(cfg)
		if v == "" {
			v = "(not set)"
		}
		fmt.Fprintf(out, "  %-22s %s\n", k, v)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (one of: %s)", args[0], strings.Join(settingKeys(), ", "))
	}

	next := *cfg
	if err := s.set(&next, args[1]); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("not saved: %w", err)
	}
	if err := next.Save(); err != nil {
		return err
	}
	*cfg = next

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", key, s.get(cfg))
	return nil
}
