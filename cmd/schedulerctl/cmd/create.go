package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"cronsched/pkg/schedulerclient"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new job definition",
	Long: `Create a new job definition with a cron schedule.

Example:
  schedulerctl create --name "nightly-export" --cron "0 2 * * *" --active
  schedulerctl create --name "health-ping" --cron "*/5 * * * *" --type immediate --timeout 5000`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		cronExpr, _ := flags.GetString("cron")
		jobType, _ := flags.GetString("type")
		active, _ := flags.GetBool("active")
		timeout, _ := flags.GetInt("timeout")
		maxRetries, _ := flags.GetInt("max-retries")
		tags, _ := flags.GetStringSlice("tags")

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}
		if cronExpr == "" {
			cmd.Println("Error: --cron is required")
			return
		}

		req := schedulerclient.JobInput{
			Name:           name,
			CronExpression: cronExpr,
			JobType:        jobType,
			IsActive:       &active,
			TimeoutMs:      timeout,
			MaxRetries:     &maxRetries,
			Tags:           tags,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := client().CreateJob(ctx, req)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		cmd.Printf("Job created.\nID: %s\nName: %s\nNext run: %s\n", result.ID, result.Name, formatNextRun(result.NextRunAt))
	},
}

func formatNextRun(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("name", "n", "", "Name of the job (required)")
	flags.String("cron", "", "5-field cron expression (required)")
	flags.String("type", "scheduled", "Job type: scheduled, immediate, recurring, delayed")
	flags.Bool("active", true, "Whether the job is active immediately")
	flags.Int("timeout", 30000, "Execution timeout in milliseconds")
	flags.Int("max-retries", 3, "Maximum retry attempts on failure")
	flags.StringSlice("tags", nil, "Comma-separated tags")

	rootCmd.AddCommand(createCmd)
}
