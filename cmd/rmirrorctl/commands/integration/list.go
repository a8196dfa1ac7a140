package integration

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/internal/cli/timeutil"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured integrations",
	RunE:  runList,
}

// IntegrationList renders integrations as a table.
type IntegrationList []apiclient.Integration

// Headers implements TableRenderer.
func (il IntegrationList) Headers() []string {
	return []string{"DESTINATION", "ENABLED", "SYNCED", "FAILURES", "LAST SYNC"}
}

// Rows implements TableRenderer.
func (il IntegrationList) Rows() [][]string {
	rows := make([][]string, 0, len(il))
	for _, in := range il {
		lastSync := "-"
		if in.LastSyncedAt != nil {
			lastSync = in.LastSyncedAt.Local().Format(timeutil.LocalTimeFormat)
		}
		rows = append(rows, []string{
			in.Destination,
			cmdutil.BoolToYesNo(in.Enabled),
			fmt.Sprintf("%d", in.SyncCount),
			fmt.Sprintf("%d", in.FailureCount),
			lastSync,
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	integrations, err := client.ListIntegrations()
	if err != nil {
		return fmt.Errorf("failed to list integrations: %w", err)
	}

	list := IntegrationList(integrations)
	return cmdutil.PrintOutput(os.Stdout, integrations, len(integrations) == 0,
		"No integrations configured. Run 'rmirrorctl integration set <destination>'.", list)
}

var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "List the destinations the server supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		names, err := client.ListDestinations()
		if err != nil {
			return fmt.Errorf("failed to list destinations: %w", err)
		}

		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}
