// Package main is the entry point for the schedulerctl CLI.
// schedulerctl is the operator terminal tool for the scheduler's REST
// control plane: create/trigger/inspect jobs and validate cron expressions
// without writing curl by hand.
package main

import (
	"os"

	"cronsched/cmd/schedulerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
