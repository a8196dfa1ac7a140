package notebook

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

var pagesCmd = &cobra.Command{
	Use:   "pages <notebook-uuid>",
	Short: "List the pages of a notebook",
	Long: `List the pages of a notebook with their OCR status.

Examples:
  rmirrorctl notebook pages 3f9a2b1c-...
  rmirrorctl notebook pages 3f9a2b1c-... -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runPages,
}

// PageList renders pages as a table.
type PageList []apiclient.Page

// Headers implements TableRenderer.
func (pl PageList) Headers() []string {
	return []string{"PAGE", "UUID", "OCR", "TEXT"}
}

// Rows implements TableRenderer.
func (pl PageList) Rows() [][]string {
	rows := make([][]string, 0, len(pl))
	for _, p := range pl {
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.PageNumber),
			p.PageUUID,
			p.OCRStatus,
			textPreview(p.OCRText),
		})
	}
	return rows
}

// textPreview shortens the transcription for the table view.
func textPreview(text *string) string {
	if text == nil || *text == "" {
		return "-"
	}
	s := strings.ReplaceAll(*text, "\n", " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}

func runPages(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	pages, err := client.ListPages(args[0])
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	list := PageList(pages)
	return cmdutil.PrintOutput(os.Stdout, pages, len(pages) == 0,
		"No pages in this notebook.", list)
}
