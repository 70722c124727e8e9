package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/vecsearch/internal/embeddings"

// Metrics holds all embedding-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	textBytes metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for embeddings.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(embeddingsInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"vecsearch.embedding.generation_duration_seconds",
		metric.WithDescription("Duration of embedding generation in seconds, labeled by provider"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	// Input size drives cost for byte-level and tokenizer-based providers alike
	m.textBytes, err = m.meter.Int64Histogram(
		"vecsearch.embedding.text_bytes",
		metric.WithDescription("Size in bytes of texts submitted for embedding"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(0, 16, 64, 256, 1024, 4096, 16384, 65536),
	)
	if err != nil {
		m.logger.Warn("failed to create text size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"vecsearch.embedding.errors_total",
		metric.WithDescription("Total embedding generation errors by provider"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordGeneration records embedding generation metrics.
func (m *Metrics) RecordGeneration(ctx context.Context, provider string, duration time.Duration, textBytes int, err error) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.textBytes != nil {
		m.textBytes.Record(ctx, int64(textBytes), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// Instrumented wraps an Embedder and records metrics for every call.
type Instrumented struct {
	next    Embedder
	metrics *Metrics
}

// NewInstrumented wraps next with metrics.
func NewInstrumented(next Embedder, m *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

// Embed delegates to the wrapped Embedder.
func (i *Instrumented) Embed(ctx context.Context, text string) (vectorstore.Vector, error) {
	start := time.Now()
	v, err := i.next.Embed(ctx, text)
	i.metrics.RecordGeneration(ctx, i.next.Name(), time.Since(start), len(text), err)
	return v, err
}

// Dimension delegates to the wrapped Embedder.
func (i *Instrumented) Dimension() int { return i.next.Dimension() }

// Name delegates to the wrapped Embedder.
func (i *Instrumented) Name() string { return i.next.Name() }
