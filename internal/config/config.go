// Package config provides configuration management for the scrape worker.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL           = errors.New("scrape.base_url is required")
	ErrMissingListingURL        = errors.New("scrape.listing_url is required")
	ErrInvalidURL               = errors.New("not an absolute http(s) URL")
	ErrInvalidMaxDays           = errors.New("scrape.max_days must be at least 1")
	ErrInvalidMaxConcurrency    = errors.New("scrape.max_concurrency must be at least 1")
	ErrInvalidRequestDelay      = errors.New("scrape.request_delay_ms must be non-negative")
	ErrMissingCredentialsPath   = errors.New("sink.credentials_path is required")
	ErrMissingSpreadsheetID     = errors.New("sink.spreadsheet_id is required")
	ErrInvalidBatchSize         = errors.New("sink.batch_size must be at least 1")
	ErrInvalidCellLimit         = errors.New("sink.cell_limit must exceed the truncation marker length")
	ErrMissingPosterDir         = errors.New("posters.dir is required when posters are enabled")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Defaults applied by LoadConfig before validation.
const (
	DefaultWorksheet        = "MasterMovieDatabase"
	DefaultCellLimit        = 50000
	DefaultTruncationMarker = "...[truncated]"
	DefaultBatchSize        = 20
	DefaultMaxDays          = 5
	DefaultMaxConcurrency   = 1
)

// Config represents the complete worker configuration.
type Config struct {
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Sink    SinkConfig    `yaml:"sink"`
	Posters PosterConfig  `yaml:"posters"`
	Retry   RetryPolicy   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
}

// ScrapeConfig contains source-site settings.
type ScrapeConfig struct {
	BaseURL        string `yaml:"base_url"`
	ListingURL     string `yaml:"listing_url"`
	MaxMovies      int    `yaml:"max_movies"` // 0 means no cap
	MaxDays        int    `yaml:"max_days"`
	RequestDelayMs int    `yaml:"request_delay_ms"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// RequestDelay returns the pause between consecutive requests to the source.
func (s *ScrapeConfig) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// SinkConfig contains the spreadsheet sink settings.
type SinkConfig struct {
	CredentialsPath  string `yaml:"credentials_path"`
	SpreadsheetID    string `yaml:"spreadsheet_id"`
	Worksheet        string `yaml:"worksheet"`
	BatchSize        int    `yaml:"batch_size"`
	CellLimit        int    `yaml:"cell_limit"`
	TruncationMarker string `yaml:"truncation_marker"`
}

// PosterConfig contains poster download settings.
type PosterConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

// RetryPolicy defines retry behavior for page fetches and sink writes.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Sink.Worksheet == "" {
		c.Sink.Worksheet = DefaultWorksheet
	}

	if c.Sink.CellLimit == 0 {
		c.Sink.CellLimit = DefaultCellLimit
	}

	if c.Sink.TruncationMarker == "" {
		c.Sink.TruncationMarker = DefaultTruncationMarker
	}

	if c.Sink.BatchSize == 0 {
		c.Sink.BatchSize = DefaultBatchSize
	}

	if c.Scrape.MaxDays == 0 {
		c.Scrape.MaxDays = DefaultMaxDays
	}

	if c.Scrape.MaxConcurrency == 0 {
		c.Scrape.MaxConcurrency = DefaultMaxConcurrency
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry = RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scrape.BaseURL == "" {
		return ErrMissingBaseURL
	}

	if c.Scrape.ListingURL == "" {
		return ErrMissingListingURL
	}

	for name, raw := range map[string]string{
		"scrape.base_url":    c.Scrape.BaseURL,
		"scrape.listing_url": c.Scrape.ListingURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %s", ErrInvalidURL, name)
		}
	}

	if c.Scrape.MaxDays < 1 {
		return ErrInvalidMaxDays
	}

	if c.Scrape.MaxConcurrency < 1 {
		return ErrInvalidMaxConcurrency
	}

	if c.Scrape.RequestDelayMs < 0 {
		return ErrInvalidRequestDelay
	}

	if c.Sink.CredentialsPath == "" {
		return ErrMissingCredentialsPath
	}

	if c.Sink.SpreadsheetID == "" {
		return ErrMissingSpreadsheetID
	}

	if c.Sink.BatchSize < 1 {
		return ErrInvalidBatchSize
	}

	// The cell limit is inclusive of the marker, so a truncated field must
	// still be able to hold the marker plus at least one content character.
	if c.Sink.CellLimit <= len(c.Sink.TruncationMarker) {
		return ErrInvalidCellLimit
	}

	if c.Posters.Enabled && c.Posters.Dir == "" {
		return ErrMissingPosterDir
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Listing: %s, MaxConcurrency: %d, BatchSize: %d, CellLimit: %d}",
		c.Scrape.ListingURL,
		c.Scrape.MaxConcurrency,
		c.Sink.BatchSize,
		c.Sink.CellLimit,
	)
}
