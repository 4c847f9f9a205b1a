package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/beatloom/internal/api"
)

var (
	servePort     int
	serveAdminKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and HTTP API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.APIPort = servePort
		}
		if cmd.Flags().Changed("admin-key") {
			cfg.AdminKey = serveAdminKey
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		slog.Info("beatloom starting", "db", cfg.DBPath, "seed", a.seed, "port", cfg.APIPort)

		// ── Restore timers ────────────────────────────────────────────
		if err := a.sched.Resume(ctx); err != nil {
			return err
		}

		// ── HTTP API ──────────────────────────────────────────────────
		srv := (&api.Server{
			Scheduler:   a.sched,
			Ledger:      a.ledger,
			DB:          a.db,
			World:       a.worlds,
			Motivation:  a.motives,
			Culture:     a.cultures,
			Port:        cfg.APIPort,
			AdminKey:    cfg.AdminKey,
			CORSOrigins: cfg.CORSOrigins,
		}).Start()

		<-ctx.Done()
		slog.Info("received signal, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default $BEATLOOM_API_PORT or 8080)")
	serveCmd.Flags().StringVar(&serveAdminKey, "admin-key", "", "bearer token for admin endpoints")
	rootCmd.AddCommand(serveCmd)
}
