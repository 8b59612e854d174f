package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cronsched/pkg/schedulerclient"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "schedulerctl",
	Short: "schedulerctl is a command line tool for the cron job scheduler's control plane",
	Long: `schedulerctl drives the scheduler's REST control plane from a terminal.

Common workflows:

  Create a job:
    schedulerctl create --name "nightly-export" --cron "0 2 * * *"

  Trigger a job immediately:
    schedulerctl trigger <job-id>

  Check a job's status:
    schedulerctl status <job-id>

  Validate a cron expression:
    schedulerctl validate-cron "*/15 * * * *"

  Purge old execution history:
    schedulerctl cleanup --days 30

Configuration:
  Set the API endpoint via a flag or environment variable:
    SCHEDULERCTL_URL    scheduler base URL (default: http://localhost:3000)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func client() *schedulerclient.Client {
	return schedulerclient.New(viper.GetString("url"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".schedulerctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SCHEDULERCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.schedulerctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:3000", "scheduler base URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
