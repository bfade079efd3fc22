package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <document-id>",
	Short: "Synchronize one document with its task",
	Long: `Run the same logic as the Paperless webhook for one document: create a
task when the action score is above the threshold, or bring an existing
task's status line in line with the document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("sync engine not initialized")
		}
		id, err := parseDocumentArg(args[0])
		if err != nil {
			return err
		}

		outcome, err := Engine.OnDocumentEvent(context.Background(), id)
		if err != nil {
			return fmt.Errorf("synchronizing document %d: %w", id, err)
		}
		fmt.Printf("Document %d: %s\n", id, outcome)
		return nil
	},
}

func parseDocumentArg(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
