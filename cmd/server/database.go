package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fetchstore/internal/config"
	"github.com/phrazzld/fetchstore/internal/platform/postgres"
)

// errNoDatabase is returned by migration commands when database.url is unset.
var errNoDatabase = errors.New("database.url is not configured")

// setupAppDatabase opens the database and brings its schema up to date. It
// returns a nil *sql.DB when no database is configured; tasks are then kept in
// memory only.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		logger.Info("No database configured, task state will not survive restarts")
		return nil, nil
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.DefaultPoolConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := postgres.Migrate(ctx, db, postgres.MigrateUp, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

// handleMigrations runs a single goose command against the configured
// database and returns.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("cannot run migration %q: %w", command, errNoDatabase)
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.DefaultPoolConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database connection", "error", closeErr)
		}
	}()

	logger.Info("Executing migrations", "command", command)
	if err := postgres.Migrate(ctx, db, command, logger); err != nil {
		return fmt.Errorf("migration %q failed: %w", command, err)
	}
	return nil
}
