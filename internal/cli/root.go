package cli

import (
	"context"
	"fmt"

	"github.com/existflow/goalpost/internal/config"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/tui"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	storeName  string
	ownerFlag  string

	// cfg is loaded once per invocation by the root command
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "goalpost",
	Short: "Goalpost - Accountability goals with shared countdowns",
	Long: `Goalpost lets members of a community post time-boxed goals,
track their status and see everyone's goals in one list.

Run 'goalpost' without arguments to launch the interactive TUI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			loaded = config.DefaultConfig()
		}
		cfg = loaded

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("store") {
			cfg.Store = storeName
			configChanged = true
		}
		if cmd.Flags().Changed("owner") {
			cfg.OwnerID = ownerFlag
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Save(); err != nil {
				logger.Warn("Failed to save config", logger.F("error", err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("Goalpost started", logger.F("command", cmd.Name()), logger.F("store", cfg.Store))
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(cfg); err != nil {
			return err
		}
		ctx := context.Background()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = b.Close()
			logger.Info("Backend closed")
		}()

		logger.Info("Launching TUI")
		err = tui.Run(ctx, b.repo, tui.Options{
			OwnerID:         cfg.OwnerID,
			DisplayName:     cfg.DisplayName,
			Nick:            cfg.Nick,
			UndoWindow:      cfg.UndoWindow,
			RefreshInterval: cfg.RefreshInterval,
			Location:        cfg.Location(),
			Logger:          logger.Default(),
		})
		if err != nil {
			logger.Error("TUI error", logger.F("error", err))
			return fmt.Errorf("failed to run TUI: %w", err)
		}

		logger.Info("TUI exited normally")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Goalpost exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	// Backend flags, saved to config like the logging ones
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "Record store (sqlite, postgres, remote, firestore, memory)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Owner id to act as")

	// Add subcommands
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(configCmd)
}
