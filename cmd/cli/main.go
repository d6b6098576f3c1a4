package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/sweptgrid/internal/app"
	"github.com/specialistvlad/sweptgrid/internal/cli"
	"github.com/specialistvlad/sweptgrid/internal/hcl"
)

// main is the entrypoint for the sweptgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on programming errors such as an invalid plugin
	// registry; report those as a failed startup.
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: cli.ExitFailure, Message: fmt.Sprintf("application startup panicked: %v", r)}
		}
	}()

	sweptApp, err := app.NewApp(outW, appConfig, hcl.NewLoader())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = sweptApp.Run(ctx)
	return err
}
