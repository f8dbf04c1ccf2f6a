// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/akkana/pytopo/internal"
)

// Validate performs validation of the configuration.
func Validate(config *Config) error {
	if err := validateCacheConfig(&config.Cache); err != nil {
		return err
	}
	if err := validateNetworkConfig(&config.Network); err != nil {
		return err
	}
	if err := validateBatchConfig(&config.Batch); err != nil {
		return err
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return err
	}
	if err := validateSites(config); err != nil {
		return err
	}
	return nil
}

func validateCacheConfig(cache *CacheConfig) error {
	if cache.Root == "" {
		return internal.NewError(internal.ErrorCodeConfig, "cache root directory is required", nil)
	}
	if cache.MemTiles <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "cache mem_tiles must be positive", nil)
	}
	if cache.Workers <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "cache workers must be positive", nil)
	}
	return nil
}

func validateNetworkConfig(network *NetworkConfig) error {
	if network.Timeout <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "network timeout must be positive", nil)
	}
	if network.MaxRetries < 0 {
		return internal.NewError(internal.ErrorCodeConfig, "network max_retries cannot be negative", nil)
	}
	if network.ProxyURL != "" {
		if _, err := url.Parse(network.ProxyURL); err != nil {
			return internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("invalid proxy URL: %s", network.ProxyURL), err)
		}
	}
	return nil
}

func validateBatchConfig(batch *BatchConfig) error {
	if batch.Concurrency <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "batch concurrency must be positive", nil)
	}
	if batch.ChunkSize <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "batch chunk_size must be positive", nil)
	}
	if batch.Timeout <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "batch timeout must be positive", nil)
	}
	return nil
}

func validateLoggingConfig(logging *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, logging.Level) {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("invalid log level: %s (valid: %s)",
				logging.Level, strings.Join(validLevels, ", ")), nil)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, logging.Format) {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("invalid log format: %s (valid: %s)",
				logging.Format, strings.Join(validFormats, ", ")), nil)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validOutputs, logging.Output) {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("invalid log output: %s (valid: %s)",
				logging.Output, strings.Join(validOutputs, ", ")), nil)
	}
	if logging.Output == "file" && logging.File == "" {
		return internal.NewError(internal.ErrorCodeConfig,
			"log file path is required when output is 'file'", nil)
	}
	return nil
}

func validateSites(config *Config) error {
	seen := make(map[string]bool)
	for _, s := range config.Sites {
		if s.Name == "" {
			return internal.NewError(internal.ErrorCodeConfig, "site name is required", nil)
		}
		if seen[s.Name] {
			return internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("duplicate site name: %s", s.Name), nil)
		}
		seen[s.Name] = true
		if s.Lat < -90 || s.Lat > 90 {
			return internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("site %s: latitude %g out of range", s.Name, s.Lat), nil)
		}
		if s.Lon < -180 || s.Lon > 180 {
			return internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("site %s: longitude %g out of range", s.Name, s.Lon), nil)
		}
	}
	return nil
}

// contains checks if a slice contains a string (case-insensitive).
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
