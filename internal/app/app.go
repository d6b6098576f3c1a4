package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/specialistvlad/sweptgrid/internal/metrics"
	"github.com/specialistvlad/sweptgrid/internal/output"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	cfg        *Config
	registry   *registry.Registry
	model      *config.Model
	converter  config.Converter
	metrics    *metrics.Prometheus
	httpServer *http.Server

	// memory holds the write-outs of the last run when the output format is
	// "memory".
	memory *output.Memory
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// metrics. A run file that cannot be loaded is reported as an error; a
// registry that fails validation is a programming error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, converter, err := loader.Load(ctx, cfg.GridPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.", "equations", reg.Equations(), "initials", reg.Initials())

	return &App{
		outW:      outW,
		logger:    logger,
		cfg:       cfg,
		registry:  reg,
		model:     model,
		converter: converter,
		metrics:   metrics.NewPrometheus(),
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded run file.
func (a *App) Model() *config.Model {
	return a.model
}

// Metrics returns the application's metrics.
func (a *App) Metrics() *metrics.Prometheus {
	return a.metrics
}

// Memory returns the in-memory output of the last run, or nil when the run
// wrote elsewhere.
func (a *App) Memory() *output.Memory {
	return a.memory
}
