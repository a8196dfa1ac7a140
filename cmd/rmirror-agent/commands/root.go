// Package commands implements the CLI commands for the rmirror device agent.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	serverURL string
	stateDir  string
)

// defaultWatchDir is where xochitl keeps notebook files on the device.
const defaultWatchDir = "/home/root/.local/share/remarkable/xochitl"

var rootCmd = &cobra.Command{
	Use:   "rmirror-agent",
	Short: "rmirror device agent",
	Long: `rmirror-agent watches the notebook file tree on a reMarkable device and
mirrors changed pages to an rmirror server. Files are deduplicated locally,
debounced while the device is still writing, and retried with exponential
backoff on transient failures.

Use "rmirror-agent [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the agent CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "rmirror server URL")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "agent state directory (default: ~/.local/share/rmirror-agent)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("rmirror-agent %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

// getStateDir resolves the state directory flag to its default.
func getStateDir() string {
	if stateDir != "" {
		return stateDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rmirror-agent"
	}
	return filepath.Join(home, ".local", "share", "rmirror-agent")
}
