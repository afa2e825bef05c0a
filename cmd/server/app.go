package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/fetchstore/internal/config"
	"github.com/phrazzld/fetchstore/internal/events"
	"github.com/phrazzld/fetchstore/internal/fetcher"
	"github.com/phrazzld/fetchstore/internal/platform/postgres"
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/phrazzld/fetchstore/internal/service"
	"github.com/phrazzld/fetchstore/internal/storage"
	"github.com/phrazzld/fetchstore/internal/task"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight HTTP requests get to finish.
const shutdownTimeout = 10 * time.Second

// taskLookupStore is a task store that can also report single records.
type taskLookupStore interface {
	task.TaskStore
	service.TaskLookup
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	fetcher    *fetcher.HTTPFetcher
	imageStore *storage.FileStore
	taskStore  taskLookupStore

	taskFactory  *task.FetchAndStoreTaskFactory
	taskRunner   *task.TaskRunner
	eventEmitter *events.InMemoryEventEmitter
	fetchService service.FetchService
}

// newApplication wires every component. db may be nil, in which case task
// state is kept in memory.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.fetcher = fetcher.New(fetcher.Config{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Fetch.UserAgent,
	})

	var err error
	app.imageStore, err = storage.NewFileStore(storage.Config{
		PicturesDir:  cfg.Storage.PicturesDir,
		FileName:     cfg.Storage.FileName,
		JPEGQuality:  cfg.Storage.JPEGQuality,
		WriteTimeout: cfg.Storage.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}
	logger.Info("Image store initialized", "path", redact.String(app.imageStore.Path()))

	app.taskFactory = task.NewFetchAndStoreTaskFactory(
		app.fetcher,
		app.imageStore,
		logger.With("component", "fetch_and_store_task"),
	)

	if db != nil {
		app.taskStore = postgres.NewPostgresTaskStore(db, app.taskFactory)
	} else {
		app.taskStore = task.NewInMemoryTaskStore()
	}

	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval,
		MaxAttempts:            cfg.Task.MaxAttempts,
		RetryBaseDelay:         cfg.Task.RetryBaseDelay,
		ResultRetention:        cfg.Task.ResultRetention,
	}, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(app.taskFactory, app.taskRunner, logger))

	app.fetchService, err = service.NewFetchService(app.eventEmitter, app.taskRunner, app.taskStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the task runner and serves HTTP on the configured port until
// ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", app.config.Server.Port))
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.serve(ctx, ln)
}

// serve runs the HTTP server on ln next to the task runner. When ctx is
// cancelled or the server fails, HTTP is shut down first, then the runner
// stops and the database is closed.
func (app *application) serve(ctx context.Context, ln net.Listener) error {
	defer app.cleanup()

	if err := app.taskRunner.Start(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	server := &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("Starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
