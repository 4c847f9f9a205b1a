// Command beatloom runs scheduled collaborative story games: participants
// submit actions, and each cycle weaves them into a narrative beat.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/beatloom/internal/config"
)

var (
	cfg config.Config

	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "beatloom",
	Short:         "Scheduled collaborative storytelling engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		// Flags win over the environment.
		if cmd.Flags().Changed("db") {
			cfg.DBPath = dbPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.Level(),
		}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $BEATLOOM_DB_PATH or data/beatloom.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
