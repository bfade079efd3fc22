package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/paperless-tasks/internal/core"
)

var updateTasksCmd = &cobra.Command{
	Use:     "update-tasks",
	Aliases: []string{"update_tasks"},
	Short:   "Run one sweep of completed tasks and exit",
	Long: `Check every task list for completed tasks that carry a document marker
and mark the linked Paperless documents as done, then exit.

Exits non-zero when the sweep cannot run, for example because the Google
token needs re-authorization.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Reconciler == nil {
			return fmt.Errorf("reconciler not initialized")
		}

		report, err := Reconciler.RunOnce(context.Background())
		printSweepReport(report)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		return nil
	},
}

func printSweepReport(report core.SweepReport) {
	fmt.Printf("Sweep of %d list(s): %d completed task(s)\n", report.Lists, report.Completed)
	fmt.Printf("  %-12s %d\n", "Processed:", report.Processed)
	fmt.Printf("  %-12s %d\n", "Skipped:", report.Skipped)
	fmt.Printf("  %-12s %d\n", "Failed:", report.Failed)
	for _, f := range report.Failures {
		fmt.Printf("    document %d (task %s): %s\n", f.DocumentID, f.TaskID, f.Error)
	}
}

func init() {
	rootCmd.AddCommand(updateTasksCmd)
}
