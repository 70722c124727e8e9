package logging

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config controls how vecsearchd writes logs.
type Config struct {
	Level  zapcore.Level
	Format string

	// Service is attached to every entry and names the OTEL logger scope.
	Service string

	// OTEL mirrors entries to the LoggerProvider passed to New.
	OTEL bool

	// Caller adds the file and line of the logging call.
	Caller bool

	Sampling  SamplingConfig
	Redaction RedactionConfig

	// Output receives encoded entries. Defaults to stdout.
	Output zapcore.WriteSyncer
}

// SamplingConfig thins repeated messages per level. Levels missing from
// Levels are written in full; so is everything from Error up.
type SamplingConfig struct {
	Tick   time.Duration
	Levels map[zapcore.Level]LevelSampling
}

// LevelSampling keeps the first Initial entries with the same message per
// tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSampling struct {
	Initial    int
	Thereafter int
}

// RedactionConfig names the fields that carry request content. Keys match
// case-insensitively; Patterns are matched against every string value.
type RedactionConfig struct {
	Fields   []string
	Patterns []string
}

// DefaultConfig returns the daemon defaults: JSON at info, request content
// redacted, trace and debug sampled.
func DefaultConfig() Config {
	return Config{
		Level:   zapcore.InfoLevel,
		Format:  FormatJSON,
		Service: "vecsearchd",
		Caller:  true,
		Sampling: SamplingConfig{
			Tick: time.Second,
			Levels: map[zapcore.Level]LevelSampling{
				TraceLevel:         {Initial: 10, Thereafter: 0},
				zapcore.DebugLevel: {Initial: 100, Thereafter: 10},
			},
		},
		Redaction: RedactionConfig{
			Fields: DefaultRedactedFields(),
		},
	}
}

// DefaultRedactedFields lists the request payload fields of the HTTP API.
func DefaultRedactedFields() []string {
	return []string{"text", "query", "items", "vector", "authorization"}
}

// Validate checks c for errors.
func (c Config) Validate() error {
	if c.Format != FormatJSON && c.Format != FormatConsole {
		return fmt.Errorf("format must be %q or %q, got %q", FormatJSON, FormatConsole, c.Format)
	}
	if c.Service == "" {
		return errors.New("service name is required")
	}
	if len(c.Sampling.Levels) > 0 && c.Sampling.Tick <= 0 {
		return errors.New("sampling tick must be positive")
	}
	for lvl, ls := range c.Sampling.Levels {
		if lvl >= zapcore.ErrorLevel {
			return fmt.Errorf("level %s cannot be sampled", lvl)
		}
		if ls.Initial < 0 || ls.Thereafter < 0 {
			return fmt.Errorf("sampling for level %s must be non-negative", lvl)
		}
	}
	if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
		return err
	}
	return nil
}
