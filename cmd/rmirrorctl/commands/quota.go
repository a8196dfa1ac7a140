package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/internal/cli/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show transcription quota for the current billing period",
	Long: `Show how much of the monthly OCR page allowance is used.

Examples:
  rmirrorctl quota
  rmirrorctl quota -o json`,
	RunE: runQuota,
}

func runQuota(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	status, err := client.GetQuotaStatus()
	if err != nil {
		return fmt.Errorf("failed to get quota status: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, status, nil)
	}

	limit := fmt.Sprintf("%d", status.Limit)
	remaining := fmt.Sprintf("%d", status.Remaining)
	if status.Unlimited {
		limit = "unlimited"
		remaining = "unlimited"
	}

	return output.SimpleTable(os.Stdout, [][2]string{
		{"Tier", status.Tier},
		{"Pages used", fmt.Sprintf("%d", status.Used)},
		{"Limit", limit},
		{"Remaining", remaining},
		{"Pending (quota)", fmt.Sprintf("%d", status.PendingQuota)},
		{"Period start", status.PeriodStart.Local().Format("2006-01-02")},
		{"Period end", status.PeriodEnd.Local().Format("2006-01-02")},
	})
}
