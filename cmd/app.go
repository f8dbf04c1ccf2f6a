// cmd/app.go - Shared wiring for commands
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/config"
	"github.com/akkana/pytopo/internal/logging"
	"github.com/akkana/pytopo/internal/tile"
)

// app bundles everything a command needs: the loaded configuration, a
// logger, the configured map sources and the shared tile cache.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	sources map[string]tile.Source
	cache   *cache.Cache
	fetcher *cache.Fetcher
}

// newApp loads configuration and builds the shared components. Malformed
// source definitions are logged and dropped, never fatal.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}

	sources, dropped := cfg.BuildSources()
	for _, derr := range dropped {
		log.Warn("map source dropped", "error", derr)
	}

	c, err := cache.NewCache(cfg.Cache.Root, cfg.Cache.MemTiles)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		sources: sources,
		cache:   c,
		fetcher: cache.NewFetcher(cfg.FetchConfig()),
	}, nil
}

// source resolves a configured source by name.
func (a *app) source(name string) (tile.Source, error) {
	if name == "" {
		return nil, fmt.Errorf("a map source must be specified with --source")
	}
	src, ok := a.sources[name]
	if !ok {
		names := make([]string, 0, len(a.sources))
		for n := range a.sources {
			names = append(names, n)
		}
		return nil, fmt.Errorf("unknown map source %q (configured: %v)", name, names)
	}
	return src, nil
}
