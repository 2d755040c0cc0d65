// Package main implements the entry point for the arcana API server,
// which accepts tarot reading requests, processes them asynchronously
// through an LLM pipeline, and settles credits per completed reading.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/veilmoth/arcana-api/internal/config"
	"github.com/veilmoth/arcana-api/internal/platform/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "arcana-api",
		Short: "Tarot reading generation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and batch worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		log.Printf("command failed: %v", err)
		os.Exit(1)
	}
}

// initialize loads configuration and sets up the default logger. Every
// subcommand starts here.
func initialize() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := logger.Setup(cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return cfg, nil
}
