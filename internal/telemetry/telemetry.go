package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Telemetry owns the SDK providers installed by New.
type Telemetry struct {
	cfg      Config
	tracers  *sdktrace.TracerProvider
	meters   *sdkmetric.MeterProvider
	logs     log.LoggerProvider
	degraded []string
}

// Option overrides a part of provider construction.
type Option func(*options)

type options struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	logs    log.LoggerProvider
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spans = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metrics = exp }
}

// WithLoggerProvider sets the provider handed to the log bridge. It
// defaults to the otel global logger provider.
func WithLoggerProvider(lp log.LoggerProvider) Option {
	return func(o *options) { o.logs = lp }
}

// New validates cfg and, when enabled, installs tracer and meter providers
// as the otel globals. Exporter failures degrade telemetry; only an
// invalid config is an error.
func New(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	o := options{logs: global.GetLoggerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	t.logs = o.logs

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	spans := o.spans
	if spans == nil {
		var err error
		if spans, err = newSpanExporter(ctx, cfg); err != nil {
			t.degrade("trace exporter: %v", err)
		}
	}
	if spans != nil {
		t.tracers = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		)
		otel.SetTracerProvider(t.tracers)
	}

	metrics := o.metrics
	if metrics == nil {
		var err error
		if metrics, err = newMetricExporter(ctx, cfg); err != nil {
			t.degrade("metric exporter: %v", err)
		}
	}
	if metrics != nil {
		interval := cfg.ExportInterval
		if interval == 0 {
			interval = defaultExportInterval
		}
		t.meters = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(t.meters)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})
	return t, nil
}

// Enabled reports whether export was requested.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.cfg.Enabled
}

// Degraded returns why part of telemetry is not exporting, or "".
func (t *Telemetry) Degraded() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.degraded, "; ")
}

// LoggerProvider returns the provider for the log bridge, or nil when
// telemetry is disabled.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if !t.Enabled() {
		return nil
	}
	return t.logs
}

// Shutdown flushes and stops the providers. Without a deadline on ctx it
// gives up after five seconds.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracers != nil {
		if err := t.tracers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) degrade(format string, args ...interface{}) {
	t.degraded = append(t.degraded, fmt.Sprintf(format, args...))
}
