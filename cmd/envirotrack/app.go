package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"envirotrack/internal/blob"
	"envirotrack/internal/config"
	"envirotrack/internal/core"
	"envirotrack/internal/logger"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	storage    string
	logLevel   string
}

// app holds the wired service for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *core.Store
	svc      *core.Service
	registry *prometheus.Registry
}

func openApp(ctx context.Context, opts globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.storage != "" {
		cfg.Storage.Driver = opts.storage
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	kv, err := core.OpenKVStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.NewMetrics(reg)

	store := core.NewStore(kv,
		core.WithStoreKey(cfg.Storage.Key),
		core.WithStoreLogger(log.Named("store")),
		core.WithStoreMetrics(metrics),
		core.WithWriteTimeout(cfg.Storage.WriteTimeout),
	)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
	}

	svc := core.NewService(store,
		core.WithLogger(log.Named("service")),
		core.WithMetrics(metrics),
		core.WithArchive(core.NewArchive(blobs, nil)),
	)
	log.Debug("envirotrack ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver),
		zap.String("key", store.Key()))
	return &app{cfg: cfg, log: log, store: store, svc: svc, registry: reg}, nil
}

// close flushes pending writes and releases the backend. A write failure
// surfaces here so the command exits non-zero.
func (a *app) close(ctx context.Context) error {
	flushErr := a.store.Flush(ctx)
	closeErr := a.store.Close()
	_ = a.log.Sync()
	return errors.Join(flushErr, closeErr)
}
