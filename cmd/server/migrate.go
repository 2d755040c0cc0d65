package main

import (
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"github.com/veilmoth/arcana-api/db/migrations"
)

// runMigrate applies all pending migrations and exits.
func runMigrate(cmd *cobra.Command) error {
	cfg, err := initialize()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(cmd.Context(), db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("migrations applied", "version", version)
	return nil
}
