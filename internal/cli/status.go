package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <document-id> [label]",
	Short: "Show or set a document's status",
	Long: `Without a label, show the document's status, action score and linked task.

With a label, set the status field, stamp the processed date and update the
status line of the linked task, exactly like the status page does.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("sync engine not initialized")
		}
		id, err := parseDocumentArg(args[0])
		if err != nil {
			return err
		}
		ctx := context.Background()

		if len(args) == 2 {
			date, err := Engine.SetDocumentStatus(ctx, id, args[1])
			if err != nil {
				return fmt.Errorf("setting status of document %d: %w", id, err)
			}
			fmt.Printf("Document %d: status set to %q (processed %s)\n", id, args[1], date)
			return nil
		}

		state, err := Engine.DocumentStatus(ctx, id)
		if err != nil {
			return fmt.Errorf("reading document %d: %w", id, err)
		}
		if statusJSON {
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting status as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Document %d: %s\n\n", state.DocumentID, state.Title)
		fmt.Printf("  %-16s %s\n", "Status:", orDash(state.Label))
		fmt.Printf("  %-16s %g\n", "Action score:", state.ActionScore)
		fmt.Printf("  %-16s %s\n", "Processed:", orDash(state.ProcessedDate))
		switch {
		case state.Task != nil:
			done := "open"
			if state.Task.IsCompleted() {
				done = "completed"
			}
			fmt.Printf("  %-16s %s in list %s (%s)\n", "Task:", state.Task.ID, state.Task.ListID, done)
		case state.TaskError != "":
			fmt.Printf("  %-16s unavailable: %s\n", "Task:", state.TaskError)
		default:
			fmt.Printf("  %-16s none\n", "Task:")
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}
