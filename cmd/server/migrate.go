package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"blueprint-api/internal/config"
	"blueprint-api/internal/database"
	"blueprint-api/internal/repository"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

func migrationCommand(direction database.MigrationDirection, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(db *database.DB) error {
				return db.Migrate(cmd.Context(), direction)
			})
		},
	}
}

var pruneTokensCmd = &cobra.Command{
	Use:   "prune-tokens",
	Short: "Delete expired refresh tokens from PostgreSQL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *database.DB) error {
			removed, err := repository.NewTokenRepository(db.Pool).CleanExpired(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("expired refresh tokens removed", "count", removed)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, pruneTokensCmd)
	migrateCmd.AddCommand(
		migrationCommand(database.MigrateUp, "Apply all pending migrations"),
		migrationCommand(database.MigrateDown, "Roll back the latest migration"),
		migrationCommand(database.MigrateStatus, "Print the status of every migration"),
	)
}

func withDatabase(ctx context.Context, fn func(db *database.DB) error) error {
	cfg := config.Read()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := database.New(ctx, cfg.DatabaseURL, max(cfg.DBMaxConns, 1), 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(db)
}
