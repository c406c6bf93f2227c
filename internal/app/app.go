// Package app assembles the logger, hub resolver, tokenizer engine and bridge
// from a loaded configuration. Both the shared library and the CLI start here.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/config"
	"github.com/samcharles93/tokbridge/internal/engine"
	"github.com/samcharles93/tokbridge/internal/hub"
	"github.com/samcharles93/tokbridge/internal/logger"
)

// Options are the pieces a host supplies alongside the config file.
type Options struct {
	// Allocator owns result buffers. Nil selects the Go heap.
	Allocator bridge.Allocator
	// Stderr receives log output; nil means os.Stderr.
	Stderr io.Writer
	// Logger, when set, replaces the one built from the config.
	Logger logger.Logger
}

// App holds the assembled components. Close releases the log file.
type App struct {
	Config   config.Config
	Log      logger.Logger
	Resolver *hub.Resolver
	Engine   *engine.Cached
	Bridge   *bridge.Bridge

	closer io.Closer
}

func New(cfg config.Config, opts Options) (*App, error) {
	log, closer := opts.Logger, io.Closer(nil)
	if log == nil {
		var err error
		log, closer, err = logger.Open(logger.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
			Stderr: opts.Stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("open logger: %w", err)
		}
	}

	resolver := hub.NewResolver(hub.Options{
		CacheDir: cfg.CacheDir,
		Endpoint: cfg.HubEndpoint,
		Revision: cfg.Revision,
		Token:    cfg.HFToken,
		Offline:  cfg.Offline,
		Aliases:  cfg.Aliases,
		Logger:   log.WithGroup("hub"),
		RetryMax: 2,
	})
	eng, err := engine.NewCached(engine.Config{
		Resolver:         resolver,
		DefaultModel:     cfg.DefaultModel,
		CacheSize:        cfg.ModelCacheSize,
		AddSpecialTokens: cfg.AddSpecialTokens,
		DebugLogs:        cfg.DebugLogs,
		Logger:           log.WithGroup("engine"),
	})
	if err != nil {
		return nil, errors.Join(err, closeQuietly(closer))
	}

	alloc := opts.Allocator
	if alloc == nil {
		alloc = bridge.NewHeapAllocator()
	}
	if cfg.TrackAllocations {
		alloc = bridge.NewTrackingAllocator(alloc, log.WithGroup("alloc"))
	}
	b, err := bridge.New(bridge.Options{
		Engine:    eng,
		Allocator: alloc,
		Logger:    log.WithGroup("bridge"),
		DebugLogs: cfg.DebugLogs,
	})
	if err != nil {
		return nil, errors.Join(err, closeQuietly(closer))
	}

	log.Debug("tokbridge ready",
		"default_model", cfg.DefaultModel,
		"cache_dir", cfg.CacheDir,
		"offline", cfg.Offline,
		"track_allocations", cfg.TrackAllocations,
	)
	return &App{Config: cfg, Log: log, Resolver: resolver, Engine: eng, Bridge: b, closer: closer}, nil
}

// Load reads the config at path (the default location when empty) and builds an App.
func Load(path string, opts Options) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

func (a *App) Close() error {
	return closeQuietly(a.closer)
}

func closeQuietly(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}
