package integration

import (
	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <destination>",
	Short: "Remove a destination integration",
	Long: `Remove a destination's credentials and sync bookkeeping.

Content already delivered to the destination is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	return cmdutil.RunDeleteWithConfirmation("integration", args[0], deleteForce, func() error {
		return client.DeleteIntegration(args[0])
	})
}
