package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger destination syncs",
	Long: `Queue pages for delivery to the enabled destination integrations.

Examples:
  # Queue every completed page (after enabling a new integration)
  rmirrorctl sync initial

  # Queue one notebook
  rmirrorctl sync notebook 3f9a2b1c-...`,
}

var (
	syncPageLimit int
	syncForce     bool
)

func init() {
	syncInitialCmd.Flags().IntVar(&syncPageLimit, "page-limit", 0, "Cap the number of pages queued (0 = all)")
	syncInitialCmd.Flags().BoolVar(&syncForce, "force", false, "Rerun the bootstrap even if it already ran")

	syncCmd.AddCommand(syncInitialCmd)
	syncCmd.AddCommand(syncNotebookCmd)
}

var syncInitialCmd = &cobra.Command{
	Use:   "initial",
	Short: "Queue all completed pages for sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := client.TriggerInitialSync(&apiclient.SyncInitialRequest{
			PageLimit: syncPageLimit,
			Force:     syncForce,
		})
		if err != nil {
			return fmt.Errorf("failed to trigger sync: %w", err)
		}

		cmdutil.PrintSuccess(fmt.Sprintf("%d pages queued for sync across %d notebooks",
			result.PagesQueued, result.NotebooksQueued))
		return nil
	},
}

var syncNotebookCmd = &cobra.Command{
	Use:   "notebook <uuid>",
	Short: "Queue one notebook's pages for sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := client.TriggerNotebookSync(args[0])
		if err != nil {
			return fmt.Errorf("failed to trigger sync: %w", err)
		}

		cmdutil.PrintSuccess(fmt.Sprintf("%d pages queued for sync", result.PagesQueued))
		return nil
	},
}
