// Package integration implements destination integration commands for rmirrorctl.
package integration

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for integration management.
var Cmd = &cobra.Command{
	Use:     "integration",
	Aliases: []string{"integrations"},
	Short:   "Manage destination integrations",
	Long: `Manage third-party destinations that receive your transcribed pages.

Credentials are encrypted at rest on the server and never returned once
stored.

Examples:
  # Show which destinations the server supports
  rmirrorctl integration destinations

  # Configure the webhook destination
  rmirrorctl integration set webhook --setting url=https://example.com/hook --validate

  # List configured integrations
  rmirrorctl integration list

  # Pause an integration without dropping its credentials
  rmirrorctl integration set webhook --disable

  # Remove an integration
  rmirrorctl integration delete webhook`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(destinationsCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(deleteCmd)
}
