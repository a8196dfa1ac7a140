package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/config"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the configured database.

This command applies pending schema migrations to the configured database
(SQLite or PostgreSQL). It is required after upgrading rmirror when schema
changes have been made.

Examples:
  # Run migrations with default config
  rmirror migrate

  # Run migrations with custom config
  rmirror migrate --config /etc/rmirror/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Opening the store triggers auto-migration
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the migration worked by checking if we can query users
	if _, err := st.ListUsers(context.Background()); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
