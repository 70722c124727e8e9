// Package telemetry exports vecsearchd traces and metrics over OTLP.
//
// New installs SDK tracer and meter providers as the otel globals, so the
// spans and instruments that components obtain through otel.Tracer and
// otel.Meter are exported without further wiring. When telemetry is
// disabled the globals stay no-op. Store and persistence counters are
// separate: they are Prometheus metrics served on /metrics.
//
// An exporter that cannot be created degrades telemetry instead of failing
// startup; Degraded reports why.
package telemetry
