// Package semantic composes embedding, storage, search and persistence
// into the operations exposed over HTTP.
package semantic

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecsearch/internal/embeddings"
	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/vecsearch/internal/semantic"

// ErrInvalidTopK is returned for a negative result count.
var ErrInvalidTopK = errors.New("top_k must be non-negative")

// Persister saves and restores store snapshots.
type Persister interface {
	Save(ctx context.Context, snap vectorstore.Snapshot) error
	Load(ctx context.Context, store persistence.Replacer) (persistence.LoadOutcome, error)
	Path() string
}

// Item is a text to embed and index under ID.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SearchRequest describes a nearest-neighbour query.
type SearchRequest struct {
	Query string

	// TopK limits the number of hits. Nil selects the configured default;
	// zero yields no hits.
	TopK *int
}

// Stats summarizes the service state.
type Stats struct {
	Entries      int    `json:"entries"`
	Dimension    int    `json:"dimension"`
	SnapshotPath string `json:"snapshot_path"`
}

// Config configures the service.
type Config struct {
	// DefaultTopK applies when a search omits top_k (default: 5).
	DefaultTopK int
}

// Service implements the embed, index, search and persist operations.
type Service struct {
	store     vectorstore.Store
	embedder  embeddings.Embedder
	persister Persister
	config    Config
	logger    *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	indexCounter  metric.Int64Counter
	searchCounter metric.Int64Counter
}

// NewService creates a service over the given components.
func NewService(cfg Config, store vectorstore.Store, embedder embeddings.Embedder, persister Persister, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if persister == nil {
		return nil, errors.New("persister is required")
	}
	if embedder.Dimension() != vectorstore.Dimension {
		return nil, fmt.Errorf("embedder %s dimension %d does not match store dimension %d",
			embedder.Name(), embedder.Dimension(), vectorstore.Dimension)
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = vectorstore.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:     store,
		embedder:  embedder,
		persister: persister,
		config:    cfg,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.indexCounter, err = s.meter.Int64Counter(
		"vecsearch.semantic.indexed_total",
		metric.WithDescription("Total number of texts indexed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		s.logger.Warn("failed to create index counter", zap.Error(err))
	}

	s.searchCounter, err = s.meter.Int64Counter(
		"vecsearch.semantic.searches_total",
		metric.WithDescription("Total number of searches served"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		s.logger.Warn("failed to create search counter", zap.Error(err))
	}
}

// Embed returns the vector for text.
func (s *Service) Embed(ctx context.Context, text string) (vectorstore.Vector, error) {
	ctx, span := s.tracer.Start(ctx, "semantic.embed")
	defer span.End()
	span.SetAttributes(attribute.Int("text_bytes", len(text)))

	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return v, nil
}

// Index embeds text and stores it under id, replacing any previous entry.
func (s *Service) Index(ctx context.Context, id, text string) error {
	ctx, span := s.tracer.Start(ctx, "semantic.index")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	if id == "" {
		span.SetStatus(codes.Error, vectorstore.ErrEmptyID.Error())
		return vectorstore.ErrEmptyID
	}

	v, err := s.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.store.Upsert(id, v); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to index %q: %w", id, err)
	}

	if s.indexCounter != nil {
		s.indexCounter.Add(ctx, 1)
	}
	return nil
}

// IndexBulk embeds and stores all items as one atomic batch and returns
// the store size afterwards. If any item fails nothing is written.
func (s *Service) IndexBulk(ctx context.Context, items []Item) (int, error) {
	ctx, span := s.tracer.Start(ctx, "semantic.index_bulk")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(items)))

	entries := make([]vectorstore.Entry, 0, len(items))
	for i, item := range items {
		if item.ID == "" {
			err := fmt.Errorf("item %d: %w", i, vectorstore.ErrEmptyID)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		v, err := s.embedder.Embed(ctx, item.Text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, fmt.Errorf("failed to embed item %q: %w", item.ID, err)
		}
		entries = append(entries, vectorstore.Entry{ID: item.ID, Vector: v})
	}

	n, err := s.store.UpsertMany(entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to index batch: %w", err)
	}

	if s.indexCounter != nil {
		s.indexCounter.Add(ctx, int64(len(entries)))
	}
	span.SetAttributes(attribute.Int("entries", n))
	s.logger.Debug("bulk indexed",
		zap.Int("batch_size", len(entries)),
		zap.Int("entries", n))
	return n, nil
}

// Search ranks stored entries by cosine similarity to the query text.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]vectorstore.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "semantic.search")
	defer span.End()

	k := s.config.DefaultTopK
	if req.TopK != nil {
		k = *req.TopK
	}
	span.SetAttributes(attribute.Int("top_k", k))
	if k < 0 {
		span.SetStatus(codes.Error, ErrInvalidTopK.Error())
		return nil, ErrInvalidTopK
	}

	q, err := s.Embed(ctx, req.Query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	hits := vectorstore.ExactSearch(q, s.store.Snapshot(), k)

	if s.searchCounter != nil {
		s.searchCounter.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// Save writes a snapshot of the store to disk.
func (s *Service) Save(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "semantic.save")
	defer span.End()

	snap := s.store.Snapshot()
	span.SetAttributes(attribute.Int("entries", len(snap)))

	if err := s.persister.Save(ctx, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Load replaces the store contents with the snapshot on disk.
func (s *Service) Load(ctx context.Context) (persistence.LoadOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "semantic.load")
	defer span.End()

	outcome, err := s.persister.Load(ctx, s.store)
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

// Stats reports the current store size and configuration.
func (s *Service) Stats() Stats {
	return Stats{
		Entries:      s.store.Len(),
		Dimension:    vectorstore.Dimension,
		SnapshotPath: s.persister.Path(),
	}
}
