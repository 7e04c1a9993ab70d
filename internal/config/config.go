// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/linkscan/internal/schemas"
)

const (
	// DefaultInput is the URL list read when no input is configured.
	DefaultInput = "urls.txt"
	// DefaultOutput is the TSV file written when no output is configured.
	DefaultOutput = "linked_urls.txt"
	// DefaultTimeout is the per-request fetch timeout.
	DefaultTimeout = "30s"
	// DefaultExtractor is the link extractor name.
	DefaultExtractor = "pattern"
	// DefaultLogLevel is the minimum log level.
	DefaultLogLevel = "info"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	// Paths
	Input  string `json:"input,omitempty" validate:"omitempty,nefield=Output"` // URL list, one per line
	Output string `json:"output,omitempty"`                                    // TSV output file

	// Fetching
	Concurrency  int               `json:"concurrency,omitempty" validate:"gte=0"` // Max in-flight fetches, 0 = unbounded
	Timeout      string            `json:"timeout,omitempty"`                      // Per-request timeout, Go duration
	UserAgent    string            `json:"user_agent,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	StrictStatus bool              `json:"strict_status,omitempty"` // Treat non-2xx as failures
	Browser      bool              `json:"browser,omitempty"`       // Render pages in headless Chrome

	// Extraction
	Extractor string `json:"extractor,omitempty" validate:"omitempty,oneof=pattern markup"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty" validate:"omitempty,url"` // PostgreSQL connection URL

	// Behavior
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Verbose  bool   `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Input:     DefaultInput,
		Output:    DefaultOutput,
		Timeout:   DefaultTimeout,
		Extractor: DefaultExtractor,
		LogLevel:  DefaultLogLevel,
	}
}

// FromEnv returns the values set through environment variables.
func FromEnv() Config {
	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}
}

// LoadConfig loads configuration from a JSON file after checking it
// against the config schema.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := schemas.ValidateConfig(string(data)); err != nil {
		return nil, fmt.Errorf("config file %s does not match schema: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("config error: invalid timeout %q: %w", c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("config error: timeout must be positive, got %s", c.Timeout)
		}
	}
	return nil
}

// TimeoutDuration returns the parsed timeout, or zero if unset.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Input == "" {
		result.Input = defaults.Input
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.Timeout == "" {
		result.Timeout = defaults.Timeout
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.Extractor == "" {
		result.Extractor = defaults.Extractor
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if len(result.Headers) == 0 {
		result.Headers = defaults.Headers
	}

	// Bool fields: cannot distinguish unset from false, so true wins.
	result.StrictStatus = result.StrictStatus || defaults.StrictStatus
	result.Browser = result.Browser || defaults.Browser
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
