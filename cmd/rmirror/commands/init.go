package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/pkg/config"
	"github.com/gottino/rmirror-cloud/pkg/models"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample rmirror configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/rmirror/config.yaml.
Use --config to specify a custom path.

A random JWT signing secret, credential-sealing secret and admin password
are generated. The admin password is printed once and stored only as a
bcrypt hash.

Examples:
  # Initialize with default location
  rmirror init

  # Initialize with custom path
  rmirror init --config /etc/rmirror/config.yaml

  # Force overwrite existing config
  rmirror init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()

	jwtSecret, err := randomSecret(32)
	if err != nil {
		return err
	}
	masterSecret, err := randomSecret(32)
	if err != nil {
		return err
	}
	cfg.Auth.JWTSecret = jwtSecret
	cfg.Destinations.MasterSecret = masterSecret

	adminPassword, err := randomSecret(12)
	if err != nil {
		return err
	}
	hash, err := models.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	cfg.Admin.PasswordHash = hash

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Printf("\nAdmin account: %s\n", cfg.Admin.Email)
	fmt.Printf("Admin password: %s\n", adminPassword)
	fmt.Println("Save this password. It will not be shown again.")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: rmirror start")
	fmt.Println("\nSecurity note:")
	fmt.Println("  For production, keep secrets out of the file and use environment variables:")
	fmt.Println("    export RMIRROR_AUTH_JWT_SECRET=$(openssl rand -hex 32)")
	fmt.Println("    export RMIRROR_DESTINATIONS_MASTER_SECRET=$(openssl rand -hex 32)")

	return nil
}

// randomSecret returns n random bytes hex encoded (2n characters).
func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
