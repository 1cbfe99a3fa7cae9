package commands

import (
	"github.com/spf13/cobra"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/config"
)

// NewConfigCommand creates the config command, which prints the default
// configuration as YAML suitable for a phxhomes.yaml starting point.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.DumpDefaults(cmd.OutOrStdout())
		},
	}
}
