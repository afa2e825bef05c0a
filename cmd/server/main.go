// Package main implements the entry point for the fetchstore server, which
// accepts image URLs over HTTP and fetches each one into the pictures
// directory on a background worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/fetchstore/internal/config"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	migrateCmd := flag.String("migrate", "", "run a database migration command (up|down|status|version|reset) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *migrateCmd); err != nil {
		log.Printf("fetchstore: %v", err)
		os.Exit(1)
	}
}

// run loads configuration and either executes a migration command or serves
// until ctx is cancelled.
func run(ctx context.Context, configPath, migrateCmd string) error {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"pictures_dir", cfg.Storage.PicturesDir,
		"database_configured", cfg.Database.URL != "")

	if migrateCmd != "" {
		return handleMigrations(ctx, cfg, migrateCmd, l)
	}

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, l, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
