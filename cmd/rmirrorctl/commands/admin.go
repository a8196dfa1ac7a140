package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative operations",
	Long: `Administrative operations on user accounts.

These commands require an admin account.

Examples:
  # Upgrade a user to the pro tier
  rmirrorctl admin tier 4f1c9d2e-... pro

  # Start a fresh billing period for a user
  rmirrorctl admin quota-reset 4f1c9d2e-...`,
}

func init() {
	adminCmd.AddCommand(adminTierCmd)
	adminCmd.AddCommand(adminQuotaResetCmd)
}

var adminTierCmd = &cobra.Command{
	Use:   "tier <user-id> <free|pro|enterprise>",
	Short: "Change a user's subscription tier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := client.SetUserTier(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to change tier: %w", err)
		}

		msg := fmt.Sprintf("Tier changed to %s", result.Tier)
		if result.PagesScheduled > 0 {
			msg += fmt.Sprintf(" (%d deferred pages scheduled)", result.PagesScheduled)
		}
		cmdutil.PrintSuccess(msg)
		return nil
	},
}

var adminQuotaResetCmd = &cobra.Command{
	Use:   "quota-reset <user-id>",
	Short: "Start a fresh billing period for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := client.ResetUserQuota(args[0])
		if err != nil {
			return fmt.Errorf("failed to reset quota: %w", err)
		}

		msg := "Quota reset"
		if result.PagesScheduled > 0 {
			msg += fmt.Sprintf(" (%d deferred pages scheduled)", result.PagesScheduled)
		}
		cmdutil.PrintSuccess(msg)
		return nil
	},
}
