// Package config implements configuration inspection commands for rmirror.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect the rmirror server configuration.

Examples:
  # Show the effective configuration
  rmirror config show

  # Generate a JSON schema for the config file
  rmirror config schema`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}
