// Package commands implements the rmirrorctl CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/cmdutil"
	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/commands/integration"
	"github.com/gottino/rmirror-cloud/cmd/rmirrorctl/commands/notebook"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rmirrorctl",
	Short: "rmirrorctl - manage an rmirror server",
	Long: `rmirrorctl is the command-line client for an rmirror server.

It manages your mirrored notebooks, transcription quota and third-party
destination integrations.

Use "rmirrorctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.ServerURL, "server", "", "Server URL (overrides stored context)")
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.Token, "token", "", "Access token (overrides stored context)")
	rootCmd.PersistentFlags().StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&cmdutil.Flags.Verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(notebook.Cmd)
	rootCmd.AddCommand(integration.Cmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rmirrorctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}
