package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

var (
	validOutputs   = []string{"auto", "text", "markdown", "json"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.MacrosDir == "" {
		errs = append(errs, fmt.Errorf("macros_dir is required"))
	}
	if !slices.Contains(validOutputs, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(validOutputs, "|"), c.OutputFormat))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(validLogLevels, "|"), c.LogLevel))
	}
	if c.Resolve.Workers <= 0 {
		errs = append(errs, fmt.Errorf("resolve.workers must be positive, got %d", c.Resolve.Workers))
	}
	if c.Resolve.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("resolve.timeout must be positive, got %s", c.Resolve.Timeout))
	}
	if c.Resolve.Retries < 0 {
		errs = append(errs, fmt.Errorf("resolve.retries must not be negative, got %d", c.Resolve.Retries))
	}
	if c.Resolve.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("resolve.retry_backoff must not be negative, got %s", c.Resolve.RetryBackoff))
	}
	if c.Resolve.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("resolve.queue_size must not be negative, got %d", c.Resolve.QueueSize))
	}
	if c.Filter.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("filter.cache_size must be positive, got %d", c.Filter.CacheSize))
	}
	if c.Macro.Threads < 0 {
		errs = append(errs, fmt.Errorf("macro.threads must not be negative, got %d", c.Macro.Threads))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.MacrosDir); os.IsNotExist(err) {
		return fmt.Errorf("macros directory does not exist: %s\nHint: Create the directory or use --macros-dir to specify a different path", c.MacrosDir)
	}
	return nil
}
