// Package config provides configuration loading for vecsearch.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then VECSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete vecsearch configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Search      SearchConfig      `koanf:"search"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests/second per client, 0 disables
	RateBurst       int      `koanf:"rate_burst"`
}

// PersistenceConfig controls the JSON snapshot file.
type PersistenceConfig struct {
	Path             string   `koanf:"path"`
	Compress         bool     `koanf:"compress"`
	LoadOnStart      bool     `koanf:"load_on_start"`
	SaveOnShutdown   bool     `koanf:"save_on_shutdown"`
	AutosaveInterval Duration `koanf:"autosave_interval"` // 0 disables
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultTopK int `koanf:"default_top_k"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"`
}

// LoggingConfig holds the logging knobs exposed through the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Defaults used by applyDefaults.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultSnapshotPath    = "data/store.json"
	DefaultTopK            = 5
	DefaultEmbedder        = "bytes"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultTelemetryHost   = "localhost:4317"
	DefaultServiceName     = "vecsearchd"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error wrapping ErrInvalidConfig if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Rate limit, rate burst or autosave interval is negative
//   - Default top-k is below 1
//   - Snapshot path is empty
//   - Log format is not json or console
//   - Telemetry sample rate is outside [0, 1]
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("%w: rate limit and burst must be non-negative", ErrInvalidConfig)
	}
	if c.Persistence.Path == "" {
		return fmt.Errorf("%w: persistence path is required", ErrInvalidConfig)
	}
	if c.Persistence.AutosaveInterval.Duration() < 0 {
		return fmt.Errorf("%w: autosave interval must be non-negative", ErrInvalidConfig)
	}
	if c.Search.DefaultTopK < 1 {
		return fmt.Errorf("%w: default top_k must be >= 1, got %d", ErrInvalidConfig, c.Search.DefaultTopK)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: log format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry sample rate must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}
