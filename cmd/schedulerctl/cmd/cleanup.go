package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge execution history older than the retention window",
	Long: `Deletes job executions started more than --days ago.

Example:
  schedulerctl cleanup --days 30`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		result, err := client().CleanupExecutions(ctx, days)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		cmd.Printf("Deleted %d executions older than %d days.\n", result.Data.DeletedExecutions, result.Data.RetentionDays)
	},
}

func init() {
	cleanupCmd.Flags().Int("days", 90, "retention window in days")
	rootCmd.AddCommand(cleanupCmd)
}
