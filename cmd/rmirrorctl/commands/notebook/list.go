package notebook

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored notebooks",
	RunE:  runList,
}

// NotebookList renders notebooks as a table.
type NotebookList []apiclient.Notebook

// Headers implements TableRenderer.
func (nl NotebookList) Headers() []string {
	return []string{"UUID", "NAME", "TYPE", "PAGES"}
}

// Rows implements TableRenderer.
func (nl NotebookList) Rows() [][]string {
	rows := make([][]string, 0, len(nl))
	for _, nb := range nl {
		rows = append(rows, []string{
			nb.NotebookUUID,
			nb.VisibleName,
			cmdutil.EmptyOr(nb.DocumentType, "-"),
			fmt.Sprintf("%d", nb.PageCount),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	notebooks, err := client.ListNotebooks()
	if err != nil {
		return fmt.Errorf("failed to list notebooks: %w", err)
	}

	list := NotebookList(notebooks)
	return cmdutil.PrintOutput(os.Stdout, notebooks, len(notebooks) == 0,
		"No notebooks mirrored yet.", list)
}
