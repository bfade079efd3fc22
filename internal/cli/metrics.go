package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/paperless-tasks/internal/observability"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display synchronization metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include tasks created, status lines synchronized, documents marked
done by the sweep, sweep counts, and credential and upstream failures.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := observability.ParseSince(metricsSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		// Table format.
		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Printf("  %-24s %d\n", "Status lines synced:", metrics.StatusSyncs)
		fmt.Printf("  %-24s %d\n", "Status set manually:", metrics.StatusSetManually)
		fmt.Printf("  %-24s %d\n", "Documents reconciled:", metrics.DocumentsReconciled)
		fmt.Printf("  %-24s %d\n", "Sweeps:", metrics.Sweeps)
		fmt.Printf("  %-24s %d\n", "Sweep tasks skipped:", metrics.SweepTasksSkipped)
		fmt.Printf("  %-24s %d\n", "Sweep tasks failed:", metrics.SweepTasksFailed)
		fmt.Printf("  %-24s %d\n", "Credential failures:", metrics.CredentialFailures)
		fmt.Printf("  %-24s %d\n", "Upstream failures:", metrics.UpstreamFailures)

		printCounts("Webhook outcomes:", metrics.OutcomesByKind)
		printCounts("Failures by operation:", metrics.FailuresByOp)

		if metrics.LastSweep != nil {
			fmt.Printf("\n  %-24s %s\n", "Last sweep:", metrics.LastSweep.Format(time.RFC3339))
		}
		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("\n  %s\n", title)
	for _, k := range sortedKeys(counts) {
		fmt.Printf("    %-22s %d\n", k+":", counts[k])
	}
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window: 7d, 2w, 24h or a date such as 2025-06-01")
	rootCmd.AddCommand(metricsCmd)
}
