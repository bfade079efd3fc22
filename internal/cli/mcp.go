package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	ptsyncmcp "github.com/valter-silva-au/paperless-tasks/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the ptsync MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ptsync MCP server on stdio",
	Long: `Start the ptsync MCP server on stdio transport.

The server exposes synchronization as MCP tools that AI assistants can call:
sync_document, sweep_completed_tasks, get_document_status,
set_document_status, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("sync engine not initialized")
		}

		var sweeper ptsyncmcp.Sweeper
		if Reconciler != nil {
			sweeper = Reconciler
		}
		srv := ptsyncmcp.NewServer(Engine, sweeper, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
