package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/provops/cmd/provops/commands"
	"github.com/systmms/provops/internal/config"
	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		if provopserrors.IsAborted(err) {
			// Declined confirmation is a clean stop, not a failure.
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "provops",
		Short: "Declarative environment provisioning - databases, secrets, deploys",
		Long: `provops reads a declarative provops.yaml, resolves the environment
configuration it describes, and reconciles remote state (managed database,
secret store, hosted service) to match it. Pre-existing resources marked
protected are never touched.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "provops.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting; interactive variables must come from the environment")

	rootCmd.AddCommand(
		commands.NewSafetyCheckCommand(cfg),
		commands.NewSetupDatabaseCommand(cfg),
		commands.NewSetupSecretsCommand(cfg),
		commands.NewPlanCommand(cfg),
		commands.NewVerifyCommand(cfg),
		commands.NewBuildCommand(cfg),
		commands.NewDeployCommand(cfg),
	)

	return rootCmd.Execute()
}
