// Package main provides the entry point for the phxhomes CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/cmd/phxhomes/commands"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "phxhomes",
		Short: "Phoenix house hunt - batch property analysis pipeline",
		Long: `phxhomes runs the Phoenix residential analysis pipeline over a
properties CSV: county lookup, cost estimation, listing extraction with
image dedup, kill-switch evaluation, 600-point scoring, and reports.

Commands:
  run       Run the phase pipeline over selected properties
  score     Re-score stored enrichment records without network access
  status    Show per-property phase progress
  config    Print the default configuration as YAML`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewScoreCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "phxhomes %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
