package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/internal/cli/output"
	"github.com/gottino/rmirror-cloud/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after merging file, environment and defaults.

The output includes secrets; treat it like the config file itself.

Examples:
  # Show effective config as YAML
  rmirror config show

  # Show as JSON
  rmirror config show --output json`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runShow(cmd *cobra.Command, args []string) error {
	// Config path comes from the root command's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
