// Package notebook implements notebook commands for rmirrorctl.
package notebook

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for notebook management.
var Cmd = &cobra.Command{
	Use:     "notebook",
	Aliases: []string{"notebooks", "nb"},
	Short:   "Browse mirrored notebooks",
	Long: `Browse the notebooks mirrored from your device.

Examples:
  # List all mirrored notebooks
  rmirrorctl notebook list

  # Show the pages of one notebook with their OCR status
  rmirrorctl notebook pages 3f9a2b1c-...

  # Delete a notebook from the cloud mirror
  rmirrorctl notebook delete 3f9a2b1c-...`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(pagesCmd)
	Cmd.AddCommand(deleteCmd)
}
