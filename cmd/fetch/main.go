// Command fetch runs a single fetch-and-store task in the foreground and
// prints its outcome. It uses the same configuration as the server.
//
//	fetch [-config file] [-dir pictures_dir] <image-url>
//
// The exit status is 0 on success, 1 when the task fails and 2 on usage or
// configuration errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/config"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/fetcher"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/storage"
	"github.com/phrazzld/fetchstore/internal/task"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("fetch", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to a config file (default: ./config.yaml if present)")
	picturesDir := flags.String("dir", "", "pictures directory, overrides storage.pictures_dir")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: fetch [-config file] [-dir pictures_dir] <image-url>")
		return exitUsage
	}

	var overrides []config.Override
	if *picturesDir != "" {
		overrides = append(overrides, config.Override{Key: "storage.pictures_dir", Value: *picturesDir})
	}

	cfg, err := config.LoadFile(*configPath, overrides...)
	if err != nil {
		fmt.Fprintf(stderr, "fetch: failed to load configuration: %v\n", err)
		return exitUsage
	}

	log, err := logger.SetupWithWriter(cfg.Server, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fetch: failed to set up logger: %v\n", err)
		return exitUsage
	}

	store, err := storage.NewFileStore(storage.Config{
		PicturesDir:  cfg.Storage.PicturesDir,
		FileName:     cfg.Storage.FileName,
		JPEGQuality:  cfg.Storage.JPEGQuality,
		WriteTimeout: cfg.Storage.WriteTimeout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "fetch: %v\n", err)
		return exitUsage
	}

	fetchTask, err := task.NewFetchAndStoreTask(
		uuid.Nil,
		domain.NewFetchRequest(flags.Arg(0)),
		fetcher.New(fetcher.Config{
			Timeout:   cfg.Fetch.Timeout,
			MaxBytes:  cfg.Fetch.MaxBytes,
			UserAgent: cfg.Fetch.UserAgent,
		}),
		store,
		log,
	)
	if err != nil {
		fmt.Fprintf(stderr, "fetch: %v\n", err)
		return exitUsage
	}

	outcome := fetchTask.Run(ctx)
	fmt.Fprintln(stdout, outcome.String())
	if !outcome.IsSuccess() {
		return exitFailure
	}
	fmt.Fprintln(stdout, store.Path())
	return exitSuccess
}
