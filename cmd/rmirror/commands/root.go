// Package commands implements the CLI commands for rmirror server management.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/gottino/rmirror-cloud/cmd/rmirror/commands/config"
	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rmirror",
	Short: "rmirror - handwritten notebook mirroring service",
	Long: `rmirror mirrors handwritten notebook content from reMarkable devices to
the cloud. Uploaded pages are transcribed with OCR under per-user quota and
distributed to configured third-party destinations with exactly-once
semantics.

Use "rmirror [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/rmirror/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configcmd.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// InitLogger configures the structured logger from the loaded configuration.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}
