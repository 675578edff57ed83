package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/blob"
	"stockroom/internal/core"
)

// traceRetention bounds the spans kept in memory when --trace is set.
const traceRetention = 256

// app is the service graph shared by every subcommand.
type app struct {
	config   core.Config
	logger   *core.SlogLogger
	audit    core.AuditRecorder
	registry *prometheus.Registry
	store    core.PersistentStore
	service  *core.Service
}

func newSlogLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

// openApp reads the environment, applies flag overrides and opens the store.
func openApp(ctx context.Context, opts *rootOptions, stderr io.Writer) (*app, error) {
	sl, err := newSlogLogger(stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		return nil, err
	}
	logger := core.NewSlogLogger(sl)

	cfg, err := core.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if opts.storage != "" {
		cfg.Storage.Driver = core.StorageDriver(strings.ToLower(opts.storage))
	}
	if opts.dataDir != "" {
		cfg.Storage.DataDir = opts.dataDir
	}

	engine := core.NewDefaultRulesEngine(cfg.CategoryPolicy)
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, engine)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	for _, warning := range core.LoadWarnings(store) {
		logger.Warn("store load recovered", "driver", cfg.Storage.Driver, "warning", warning)
	}

	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	registry.MustRegister(
		core.NewInventoryCollector(store),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	audit := core.LogAuditRecorder{Logger: logger.With("component", "audit")}
	svcOpts := append(cfg.ServiceOptions(),
		core.WithLogger(logger),
		core.WithAuditRecorder(audit),
		core.WithMetricsRecorder(recorder),
	)
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(stderr, traceRetention)))
	}

	logger.Debug("store opened", "driver", cfg.Storage.Driver, "data_dir", cfg.Storage.DataDir)
	return &app{
		config:   cfg,
		logger:   logger,
		audit:    audit,
		registry: registry,
		store:    store,
		service:  core.NewService(store, svcOpts...),
	}, nil
}

// openExports opens the archive store named by the environment and returns a
// started worker. The caller stops it.
func (a *app) openExports(ctx context.Context) (*exports.Worker, error) {
	cfg := blob.ConfigFromEnv()
	archives, err := blob.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s archive store: %w", cfg.Driver, err)
	}
	worker := exports.NewWorker(a.service, archives,
		exports.WithLogger(a.logger.With("component", "exports")),
		exports.WithAuditRecorder(a.audit),
	)
	worker.Start()
	return worker, nil
}

func (a *app) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
