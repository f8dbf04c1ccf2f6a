// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
)

// Config represents the complete application configuration.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Network NetworkConfig `mapstructure:"network"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sources []tile.Spec   `mapstructure:"sources"`
	Sites   []Site        `mapstructure:"sites"`
}

// CacheConfig controls the on-disk tile store.
type CacheConfig struct {
	Root     string `mapstructure:"root"`
	MemTiles int    `mapstructure:"mem_tiles"`
	Workers  int    `mapstructure:"workers"`
}

// NetworkConfig contains tile download tuning.
type NetworkConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout"`
	MaxRetries      int               `mapstructure:"max_retries"`
	ProxyURL        string            `mapstructure:"proxy_url"`
	UserAgent       string            `mapstructure:"user_agent"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration     `mapstructure:"idle_conn_timeout"`
	MaxConnsPerHost int               `mapstructure:"max_conns_per_host"`
	Headers         map[string]string `mapstructure:"headers"`
}

// BatchConfig contains prefetch job defaults.
type BatchConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FailFast    bool          `mapstructure:"fail_fast"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Site is a named starting location, the pytopo sites-file idea: jump
// to a place by name instead of typing coordinates.
type Site struct {
	Name   string  `mapstructure:"name"`
	Lat    float64 `mapstructure:"lat"`
	Lon    float64 `mapstructure:"lon"`
	Source string  `mapstructure:"source"`
	Zoom   int     `mapstructure:"zoom"`
}

// Load unmarshals and validates the configuration viper has read.
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults() {
	viper.SetDefault("cache.root", defaultCacheRoot())
	viper.SetDefault("cache.mem_tiles", 256)
	viper.SetDefault("cache.workers", 4)

	viper.SetDefault("network.timeout", 30*time.Second)
	viper.SetDefault("network.max_retries", 2)
	viper.SetDefault("network.user_agent", "pytopo/2.0")
	viper.SetDefault("network.max_idle_conns", 10)
	viper.SetDefault("network.idle_conn_timeout", 90*time.Second)
	viper.SetDefault("network.max_conns_per_host", 4)

	viper.SetDefault("batch.concurrency", 4)
	viper.SetDefault("batch.chunk_size", 64)
	viper.SetDefault("batch.timeout", 30*time.Minute)
	viper.SetDefault("batch.fail_fast", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
	viper.SetDefault("logging.max_size_mb", 10)
	viper.SetDefault("logging.max_backups", 3)
}

func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pytopo", "tiles")
	}
	return filepath.Join(".", "tiles")
}

// FetchConfig translates the network section for the tile fetcher.
func (c *Config) FetchConfig() cache.FetchConfig {
	return cache.FetchConfig{
		Timeout:         c.Network.Timeout,
		MaxRetries:      c.Network.MaxRetries,
		MaxIdleConns:    c.Network.MaxIdleConns,
		IdleConnTimeout: c.Network.IdleConnTimeout,
		MaxConnsPerHost: c.Network.MaxConnsPerHost,
		ProxyURL:        c.Network.ProxyURL,
		UserAgent:       c.Network.UserAgent,
		Headers:         c.Network.Headers,
	}
}

// BuildSources constructs the configured map sources. Malformed
// definitions are returned as warnings, never as a fatal error.
func (c *Config) BuildSources() (map[string]tile.Source, []error) {
	return tile.BuildSources(c.Sources)
}

// FindSite looks up a named site.
func (c *Config) FindSite(name string) (Site, bool) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return Site{}, false
}
