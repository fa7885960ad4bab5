// Package config loads the inspector configuration from an optional YAML
// file, .env files and INSPECTOR_* environment variables, in that order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"inspector/internal/dom/live"
	"inspector/internal/logger"
	"inspector/internal/paginate"
	"inspector/internal/storage"
)

// Default values.
const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultPageDelay      = 1500 * time.Millisecond
	defaultStorageKind    = "sqlite"
	defaultStorageDSN     = "inspector.db"
	defaultMetricsBackend = "none"
	defaultMetricsJob     = "inspector"
	defaultFlushInterval  = 60 * time.Second
	defaultWebhookRetries = 3
	defaultWebhookBackoff = time.Second
)

// Config holds the application configuration.
type Config struct {
	Log        logger.Config    `yaml:"log"`
	Browser    live.Config      `yaml:"browser"`
	HTTP       HTTPConfig       `yaml:"http"`
	Pagination PaginationConfig `yaml:"pagination"`
	Storage    storage.Config   `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Webhook    WebhookConfig    `yaml:"webhook"`
}

// HTTPConfig controls static document fetches.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" env:"INSPECTOR_HTTP_TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"INSPECTOR_HTTP_USER_AGENT"`
}

// PaginationConfig holds the defaults for paginated runs.
type PaginationConfig struct {
	Delay    time.Duration `yaml:"delay" env:"INSPECTOR_PAGE_DELAY"`
	MaxPages int           `yaml:"max_pages" env:"INSPECTOR_MAX_PAGES"`
	Trigger  string        `yaml:"trigger" env:"INSPECTOR_PAGE_TRIGGER"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend       string        `yaml:"backend" env:"INSPECTOR_METRICS_BACKEND"` // none or datadog
	Job           string        `yaml:"job" env:"INSPECTOR_METRICS_JOB"`
	Tags          []string      `yaml:"tags" env:"INSPECTOR_METRICS_TAGS"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"INSPECTOR_METRICS_FLUSH_INTERVAL"`
}

// WebhookConfig configures result delivery. An empty URL disables it.
type WebhookConfig struct {
	URL     string        `yaml:"url" env:"INSPECTOR_WEBHOOK_URL"`
	Retries int           `yaml:"retries" env:"INSPECTOR_WEBHOOK_RETRIES"`
	Backoff time.Duration `yaml:"backoff" env:"INSPECTOR_WEBHOOK_BACKOFF"`
}

// Default returns the configuration used when nothing is set. Booleans that
// default to true are set here so a YAML file can still turn them off.
func Default() Config {
	cfg := Config{
		Browser: live.Config{Headless: true, Stealth: true},
	}
	cfg.SetDefaults()
	return cfg
}

// Load reads path (skipped when empty), applies env overrides, fills the
// remaining defaults and validates the result.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("env override: %w", err)
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()

	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = defaultHTTPTimeout
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaultHTTPTimeout
	}
	if c.Pagination.Delay == 0 {
		c.Pagination.Delay = defaultPageDelay
	}
	if c.Pagination.Trigger == "" {
		c.Pagination.Trigger = string(paginate.TriggerClick)
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = defaultStorageKind
	}
	if c.Storage.DSN == "" && c.Storage.Kind == defaultStorageKind {
		c.Storage.DSN = defaultStorageDSN
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = defaultMetricsBackend
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = defaultMetricsJob
	}
	if c.Metrics.FlushInterval <= 0 {
		c.Metrics.FlushInterval = defaultFlushInterval
	}
	if c.Webhook.Retries == 0 {
		c.Webhook.Retries = defaultWebhookRetries
	}
	if c.Webhook.Backoff <= 0 {
		c.Webhook.Backoff = defaultWebhookBackoff
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	switch paginate.Trigger(c.Pagination.Trigger) {
	case paginate.TriggerClick, paginate.TriggerScroll:
	default:
		errs = append(errs, fmt.Errorf("pagination.trigger must be click or scroll, got %q", c.Pagination.Trigger))
	}
	if c.Pagination.Delay < 0 {
		errs = append(errs, errors.New("pagination.delay must not be negative"))
	}
	if c.Pagination.MaxPages < 0 {
		errs = append(errs, errors.New("pagination.max_pages must not be negative"))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn is required for kind %q", c.Storage.Kind))
	}
	switch c.Metrics.Backend {
	case "none", "datadog":
	default:
		errs = append(errs, fmt.Errorf("metrics.backend must be none or datadog, got %q", c.Metrics.Backend))
	}
	if c.Webhook.Retries < 0 {
		errs = append(errs, errors.New("webhook.retries must not be negative"))
	}

	return errors.Join(errs...)
}
