package embeddings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// ErrUnknownProvider is returned by NewProvider for unsupported names.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// Embedder generates vector embeddings from text.
//
// Implementations must be deterministic for a given input and must return
// vectors of exactly Dimension() components.
type Embedder interface {
	// Embed returns the embedding for text.
	Embed(ctx context.Context, text string) (vectorstore.Vector, error)

	// Dimension returns the length of every vector produced.
	Dimension() int

	// Name identifies the implementation in logs and metrics.
	Name() string
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type. Only "bytes" is currently supported.
	Provider string

	// Logger receives provider diagnostics. Optional.
	Logger *zap.Logger

	// Instrument wraps the provider with otel metrics when true.
	Instrument bool
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Embedder, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var e Embedder
	switch cfg.Provider {
	case ProviderBytes, "":
		e = NewByteEmbedder()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if e.Dimension() != vectorstore.Dimension {
		return nil, fmt.Errorf("provider %s produces %d-dimensional vectors, store requires %d",
			e.Name(), e.Dimension(), vectorstore.Dimension)
	}

	logger.Info("embedding provider initialized",
		zap.String("provider", e.Name()),
		zap.Int("dimension", e.Dimension()))

	if cfg.Instrument {
		return NewInstrumented(e, NewMetrics(logger)), nil
	}
	return e, nil
}
