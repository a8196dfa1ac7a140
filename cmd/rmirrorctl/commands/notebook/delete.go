package notebook

import (
	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
)

var (
	deleteForce bool
	deletePurge bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <notebook-uuid>",
	Short: "Delete a notebook from the cloud mirror",
	Long: `Delete a notebook, its pages and their blobs from the cloud mirror.

The device copy is untouched; the agent will re-upload the notebook if it
changes again. With --purge, copies already delivered to destinations that
support deletion are removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip confirmation prompt")
	deleteCmd.Flags().BoolVar(&deletePurge, "purge", false, "Also delete delivered copies from destinations")
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	return cmdutil.RunDeleteWithConfirmation("notebook", args[0], deleteForce, func() error {
		return client.DeleteNotebook(args[0], deletePurge)
	})
}
