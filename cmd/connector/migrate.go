package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Migrate applies the embedded goose migrations to the database named by DATABASE_URL.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	version, err := database.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "Database migrated to version %d\n", version)
	return nil
}
