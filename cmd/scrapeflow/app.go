package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
	"github.com/scrapeflow-ai/scrapeflow/internal/config"
	"github.com/scrapeflow-ai/scrapeflow/internal/database"
	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
	"github.com/scrapeflow-ai/scrapeflow/internal/llm/providers"
	"github.com/scrapeflow-ai/scrapeflow/internal/workflow"
)

// app bundles the wired-up components a command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *database.DB
	dao     *database.WorkflowDAO
	service *workflow.Service
}

// newApp opens the database and constructs the workflow service from the
// loaded configuration. The caller must Close the app when done.
func newApp() (*app, error) {
	logger := newLogger(cfg.Logging)

	db, err := database.OpenWithConfig(database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxConnections,
		MaxIdleConns: cfg.Database.MaxConnections / 2,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s (run 'scrapeflow init' first?): %w",
			cfg.Database.Path, err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	dao := database.NewWorkflowDAO(db)

	envOpts := []workflow.EnvOption{workflow.WithDatasets(dao), workflow.WithEnvLogger(logger)}
	if extractor, err := newExtractor(cfg.LLM); err != nil {
		db.Close()
		return nil, err
	} else if extractor != nil {
		envOpts = append(envOpts, workflow.WithExtractor(extractor))
	}

	walker := workflow.NewWalker(
		workflow.WithLogger(logger),
		workflow.WithEnv(workflow.NewEnv(envOpts...)),
		workflow.WithMaxSteps(cfg.Engine.MaxSteps),
		workflow.WithDefaultTimeout(cfg.Engine.DefaultNodeTimeout),
	)
	service := workflow.NewService(dao,
		workflow.WithWalker(walker),
		workflow.WithServiceLogger(logger),
		workflow.WithDriverFactory(newDriverFactory(cfg.Browser)),
	)

	return &app{cfg: cfg, logger: logger, db: db, dao: dao, service: service}, nil
}

// Close releases the app's resources
func (a *app) Close() error {
	return a.db.Close()
}

// newLogger builds a slog.Logger from the logging configuration
func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newDriverFactory builds the per-run browser provisioner from the browser
// configuration. Mode selects the driver implementation; "static" is the
// only mode today, fetching pages over plain HTTP.
func newDriverFactory(bc config.BrowserConfig) workflow.DriverFactory {
	opts := []browser.StaticOption{
		browser.WithHTTPClient(&http.Client{Timeout: bc.NavigationTimeout}),
	}
	if bc.UserAgent != "" {
		opts = append(opts, browser.WithUserAgent(bc.UserAgent))
	}
	return func(ctx context.Context) (browser.Driver, error) {
		return browser.NewStaticDriver(opts...), nil
	}
}

// newExtractor builds the AI extractor backing the ai_* nodes, or nil when
// no default provider is configured.
func newExtractor(lc config.LLMConfig) (llm.Extractor, error) {
	if lc.DefaultProvider == "" {
		return nil, nil
	}

	pc := lc.Providers[lc.DefaultProvider]
	provider, err := providers.New(providers.Config{
		Name:         lc.DefaultProvider,
		APIKey:       pc.APIKey,
		DefaultModel: pc.Model,
		BaseURL:      pc.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure LLM provider %q: %w",
			lc.DefaultProvider, err)
	}
	return llm.NewExtractor(provider), nil
}
