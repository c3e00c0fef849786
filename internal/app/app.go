package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vk/oceanbaselines/internal/acquire"
	"github.com/vk/oceanbaselines/internal/bathy"
	"github.com/vk/oceanbaselines/internal/cache"
	"github.com/vk/oceanbaselines/internal/config"
	"github.com/vk/oceanbaselines/internal/ctxlog"
	"github.com/vk/oceanbaselines/internal/lifecycle"
	"github.com/vk/oceanbaselines/internal/ocean"
	"github.com/vk/oceanbaselines/internal/pipeline"
	"github.com/vk/oceanbaselines/internal/refengine"
	"github.com/vk/oceanbaselines/internal/region"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	model     config.Model
	catalog   *region.Catalog
	engines   ocean.Engines
	lifecycle *lifecycle.Manager
	now       func() time.Time
	newRunID  func() uuid.UUID
}

// Option customises an App. Options exist mainly for tests.
type Option func(*App)

// WithEngines replaces the reference collaborators.
func WithEngines(e ocean.Engines) Option {
	return func(a *App) { a.engines = e }
}

// WithClock fixes the time recorded in the manifest.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// NewApp is the constructor for the main application. It loads the
// configuration files, merges them with cfg, and selects the regions to run.
// Errors are configuration errors.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model := &config.Model{}
	if len(cfg.ConfigPaths) > 0 {
		loaded, err := loader.Load(ctx, cfg.ConfigPaths...)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		model = loaded
		logger.Debug("Configuration loaded.", "paths", cfg.ConfigPaths, "regions", len(model.Regions))
	}
	merged := merge(*model, cfg).WithDefaults()

	catalog := region.Default()
	if len(merged.Regions) > 0 {
		var err error
		if catalog, err = region.NewCatalog(merged.Regions...); err != nil {
			return nil, fmt.Errorf("invalid region catalog: %w", err)
		}
	}
	if len(cfg.Regions) > 0 {
		var err error
		if catalog, err = catalog.Select(cfg.Regions...); err != nil {
			return nil, err
		}
	}
	logger.Debug("Region catalog ready.", "regions", catalog.Names())

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		model:     merged,
		catalog:   catalog,
		lifecycle: lifecycle.New(),
		now:       time.Now,
		newRunID:  uuid.New,
	}
	a.engines = refengine.New(refengine.Options{
		ForcingURL: merged.Forcing.BaseURL,
		Retry:      retryPolicy(merged.Forcing),
	})
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// merge lays the CLI options over the file model.
func merge(m config.Model, cfg *Config) config.Model {
	if cfg.OutDir != "" {
		m.Settings.OutDir = cfg.OutDir
	}
	if cfg.Prefix != "" {
		m.Settings.Prefix = cfg.Prefix
	}
	if cfg.CacheRoot != "" {
		m.Settings.CacheRoot = cfg.CacheRoot
	}
	if cfg.BathySource != "" {
		m.Bathymetry.Source = cfg.BathySource
	}
	return m
}

func retryPolicy(f config.Forcing) acquire.Policy {
	p := acquire.DefaultPolicy()
	if f.Attempts > 0 {
		p.Attempts = f.Attempts
	}
	if f.AttemptTimeout > 0 {
		p.AttemptTimeout = f.AttemptTimeout
	}
	return p
}

// Catalog returns the regions this app will run. This is primarily for testing.
func (a *App) Catalog() *region.Catalog {
	return a.catalog
}

// Model returns the merged configuration. This is primarily for testing.
func (a *App) Model() config.Model {
	return a.model
}

func (a *App) orchestrator() *pipeline.Orchestrator {
	m := a.model
	resolver := bathy.NewResolver(a.engines.Bathymetry, bathy.WithPlaceholderDepth(m.Bathymetry.PlaceholderDepth))
	return pipeline.New(a.engines, cache.New(m.Settings.CacheRoot), resolver, pipeline.Settings{
		Raster: ocean.RasterSource{
			Path:     m.Bathymetry.Source,
			Coords:   m.Bathymetry.Coords,
			MinDepth: m.Bathymetry.MinDepth,
		},
		VGrid:      m.VGrid,
		Dates:      m.Forcing.Dates(),
		Boundaries: m.Forcing.Boundaries,
		Vars:       m.Forcing.Variables,
	})
}
