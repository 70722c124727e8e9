package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/vecsearch/internal/config"
)

// OTLP protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

const (
	defaultExportInterval  = 15 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config controls OTLP export.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string

	// SampleRate is the fraction of root traces kept, in [0, 1].
	SampleRate float64

	// ExportInterval is the metric push period. Zero means 15s.
	ExportInterval time.Duration
}

// DefaultConfig returns a disabled configuration pointing at a local
// collector.
func DefaultConfig() Config {
	return Config{
		Endpoint:       config.DefaultTelemetryHost,
		Protocol:       ProtocolGRPC,
		ServiceName:    config.DefaultServiceName,
		ServiceVersion: "dev",
		SampleRate:     1,
		ExportInterval: defaultExportInterval,
	}
}

// FromSettings maps the daemon's telemetry section onto a Config.
func FromSettings(s config.TelemetryConfig, version string) Config {
	cfg := DefaultConfig()
	cfg.Enabled = s.Enabled
	cfg.Endpoint = s.Endpoint
	cfg.Protocol = s.Protocol
	cfg.Insecure = s.Insecure
	cfg.ServiceName = s.ServiceName
	cfg.SampleRate = s.SampleRate
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks c. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return errors.New("service name is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %g", c.SampleRate)
	}
	if c.ExportInterval < 0 {
		return fmt.Errorf("export interval must not be negative, got %s", c.ExportInterval)
	}
	if c.Insecure && !isLoopback(c.Endpoint) {
		return fmt.Errorf("plaintext export is only allowed to a loopback collector, got %q", c.Endpoint)
	}
	return nil
}

// hostPort strips an http(s) scheme; the exporters want host:port.
func hostPort(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

func isLoopback(endpoint string) bool {
	host := hostPort(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
