package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, postgres.Up, "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration, dropping all shop data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, postgres.Down, "down")
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, dir postgres.Direction, name string) error {
	if err := postgres.Migrate(cmd.Context(), cfg.DatabaseURL, dir); err != nil {
		return err
	}
	lg.Info("Migrations applied", zap.String("direction", name))
	return nil
}
