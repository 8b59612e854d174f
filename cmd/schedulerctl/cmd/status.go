package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cronsched/pkg/schedulerclient"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get a job's status and recent execution history",
	Long:  `Retrieve a job's scheduling state (active, next run, scheduled-in-process) and its most recent execution history.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		detail, err := client().GetJob(ctx, args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		printJobStatus(cmd, detail)
	},
}

func printJobStatus(cmd *cobra.Command, detail schedulerclient.JobDetail) {
	job := detail.Job
	cmd.Printf("Job Status\n")
	cmd.Println("──────────────────────────────")
	cmd.Printf("ID:          %s\n", job.ID)
	cmd.Printf("Name:        %s\n", job.Name)
	cmd.Printf("Cron:        %s\n", job.CronExpression)
	cmd.Printf("Active:      %t\n", job.IsActive)
	cmd.Printf("Scheduled:   %t\n", detail.IsScheduled)
	cmd.Printf("Next run:    %s\n", formatNextRun(job.NextRunAt))
	cmd.Printf("Last run:    %s\n", formatNextRun(job.LastRunAt))
	cmd.Printf("Runs:        %d total, %d ok, %d failed\n", job.TotalRuns, job.SuccessfulRuns, job.FailedRuns)

	if len(detail.ExecutionHistory) == 0 {
		cmd.Println("\nNo execution history yet.")
		return
	}

	cmd.Println("\nRecent executions:")
	for _, e := range detail.ExecutionHistory {
		dur := "-"
		if e.DurationMs != nil {
			dur = fmt.Sprintf("%dms", *e.DurationMs)
		}
		cmd.Printf("  %-36s  %-10s  %s  (attempt %d, %s)\n", e.ID, e.Status, e.StartedAt.Format(time.RFC3339), e.RetryCount, dur)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
