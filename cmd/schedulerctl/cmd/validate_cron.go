package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var validateCronCmd = &cobra.Command{
	Use:   "validate-cron [expression]",
	Short: "Validate a cron expression and preview its next firings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := client().ValidateCron(ctx, args[0])
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}

		if !result.Data.IsValid {
			cmd.Printf("%q is not a valid 5-field cron expression\n", args[0])
			return
		}

		cmd.Printf("%q is valid (timezone: %s)\n", args[0], result.Data.Timezone)
		cmd.Println("Next firings:")
		for _, t := range result.Data.NextRuns {
			cmd.Printf("  %s\n", t.Format(time.RFC3339))
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCronCmd)
}
