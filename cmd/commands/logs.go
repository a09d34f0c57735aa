package commands

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// newPruneLogsCmd creates the "prune-logs" maintenance command. Plugin hosts
// accumulate SQL and request entries quickly, so retention is expressed as a
// duration rather than a day count.
func newPruneLogsCmd(state *cliState) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-logs",
		Short: "Remove system log entries past the retention window",
		Long: `Deletes system log entries (host, plugin, SQL, and request logs)
whose age exceeds the retention window, e.g. --older-than 720h for 30 days.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("retention window must be positive, got %s", olderThan)
			}

			removed, err := state.DB.PruneLogs(context.Background(), olderThan)
			if err != nil {
				return fmt.Errorf("failed to prune logs: %w", err)
			}

			log.Printf("Removed %d log entries older than %s", removed, olderThan)

			return nil
		},
	}

	cmd.Flags().DurationVar(
		&olderThan,
		"older-than",
		30*24*time.Hour,
		"Drop entries older than this duration (e.g. 72h, 720h)",
	)

	return cmd
}
