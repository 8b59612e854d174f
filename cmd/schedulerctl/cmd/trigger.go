package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [job_id]",
	Short: "Trigger a job immediately",
	Long:  `Trigger a manual, out-of-cycle run of a job. Has no effect if the job is already running.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := client().TriggerJob(ctx, args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		cmd.Printf("Trigger accepted.\nJob: %s (%s)\nTriggered at: %s\n",
			result.Data.JobName, result.Data.JobID, result.Data.TriggeredAt.Format(time.RFC3339))
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
