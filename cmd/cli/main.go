package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/resgraph/internal/app"
	"github.com/specialistvlad/resgraph/internal/cli"
	"github.com/specialistvlad/resgraph/internal/hclscene"
)

// exitSceneErrors is the exit code of a strict run whose scene has errors.
const exitSceneErrors = 3

// main is the entrypoint for the resgraph application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader, err := hclscene.NewLoader(
		hclscene.WithParseWorkers(appConfig.ParseWorkers),
		hclscene.WithCacheSize(appConfig.CacheSize),
	)
	if err != nil {
		return err
	}

	resgraphApp, err := app.NewApp(outW, appConfig, loader)
	if err != nil {
		return err
	}

	err = resgraphApp.Run(ctx)
	if errors.Is(err, app.ErrSceneHasErrors) {
		return &cli.ExitError{Code: exitSceneErrors, Message: err.Error()}
	}
	return err
}
