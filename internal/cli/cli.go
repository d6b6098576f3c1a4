package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/sweptgrid/internal/app"
	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Exit codes of the sweptgrid binary.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitResource      = 3
	ExitComputation   = 4
	ExitCommunication = 5
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode maps a run failure to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch runerr.KindOf(err) {
	case runerr.Configuration:
		return ExitConfiguration
	case runerr.Resource:
		return ExitResource
	case runerr.Computation:
		return ExitComputation
	case runerr.Communication:
		return ExitCommunication
	default:
		return ExitFailure
	}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("sweptgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
sweptgrid - A swept-rule space-time decomposition solver for 2-D grids.

Usage:
  sweptgrid [options] [RUN_PATH]

Arguments:
  RUN_PATH
    Path to a single .hcl run file or a directory containing .hcl files.

Exit codes:
  2 configuration, 3 resource, 4 computation, 5 communication error.

Options:
`)
		flagSet.PrintDefaults()
	}

	gridFlag := flagSet.String("grid", "", "Path to the run file or directory.")
	gFlag := flagSet.String("g", "", "Path to the run file or directory (shorthand).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	rankFlag := flagSet.Int("rank", -1, "Rank to run over the socketio transport. -1 runs every rank in this process.")
	hubFlag := flagSet.String("hub", "", "Hub URL for the socketio transport; overrides the run file.")
	serveHubFlag := flagSet.String("serve-hub", "", "Serve a socketio hub on this address, e.g. ':9000'.")
	outputFlag := flagSet.String("output", "", "Output path; overrides the run file.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitConfiguration, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *gridFlag != "" {
		path = *gridFlag
	} else if *gFlag != "" {
		path = *gFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Run path determined.", "path", path)

	if path == "" {
		slog.Debug("No run path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitConfiguration, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: ExitConfiguration, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *rankFlag < -1 {
		return nil, false, &ExitError{Code: ExitConfiguration, Message: "invalid rank: must be -1 or a node index"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		GridPath:        path,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Rank:            *rankFlag,
		Hub:             *hubFlag,
		ServeHub:        *serveHubFlag,
		OutputPath:      *outputFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitConfiguration, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
