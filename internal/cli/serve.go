package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver, status page and reconciler",
	Long: `Run ptsync as a long-lived service.

Starts the HTTP server (POST /paperless_webhook, GET/POST /status/{id},
GET /healthz), the periodic reconciler that sweeps completed tasks every
SWEEP_INTERVAL, and a watcher that reloads the configuration file when it
changes. SIGINT or SIGTERM shuts everything down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if HTTPServer == nil || Reconciler == nil {
		return fmt.Errorf("server not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Reconciler.Start(ctx); err != nil {
		return fmt.Errorf("starting reconciler: %w", err)
	}
	defer Reconciler.Stop()

	if Watcher != nil {
		go func() {
			if err := Watcher.Run(ctx); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	if err := HTTPServer.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("running http server: %w", err)
	}
	slog.Info("ptsync stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
