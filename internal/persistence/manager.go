package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/vecsearch/internal/persistence"

// DefaultPath is where snapshots live when no path is configured.
const DefaultPath = "data/store.json"

// gzipMagic is the two-byte header of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// LoadOutcome reports what Load did.
type LoadOutcome int

const (
	// OutcomeNoFile means no snapshot existed; the store was not touched.
	OutcomeNoFile LoadOutcome = iota

	// OutcomeLoadError means the snapshot could not be read or was invalid;
	// the store was not touched.
	OutcomeLoadError

	// OutcomeLoaded means the store now holds exactly the file contents.
	OutcomeLoaded
)

// String returns the wire status for the outcome.
func (o LoadOutcome) String() string {
	switch o {
	case OutcomeNoFile:
		return "no_file"
	case OutcomeLoaded:
		return "loaded"
	default:
		return "load_error"
	}
}

// Replacer is the part of a store that Load needs.
type Replacer interface {
	Replace(snap vectorstore.Snapshot) error
}

// Config configures a Manager.
type Config struct {
	// Path is the snapshot file. Defaults to DefaultPath.
	Path string

	// Compress gzip-frames the JSON document on save.
	Compress bool
}

// Manager reads and writes snapshot files.
type Manager struct {
	path     string
	compress bool
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewManager creates a Manager for cfg.Path.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	return &Manager{
		path:     path,
		compress: cfg.Compress,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Path returns the snapshot file location.
func (m *Manager) Path() string {
	return m.path
}

// Save writes snap to the snapshot file, replacing any previous one.
//
// The snapshot must already be detached from the store; Save holds no
// store lock while encoding or writing.
func (m *Manager) Save(ctx context.Context, snap vectorstore.Snapshot) error {
	_, span := m.tracer.Start(ctx, "persistence.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", m.path),
		attribute.Int("entries", len(snap)),
		attribute.Bool("compress", m.compress),
	)

	n, err := m.save(snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		OperationsTotal.WithLabelValues(opSave, "error").Inc()
		m.logger.Error("snapshot save failed",
			zap.String("path", m.path),
			zap.Error(err))
		return err
	}

	OperationsTotal.WithLabelValues(opSave, "saved").Inc()
	SnapshotBytes.WithLabelValues(opSave).Set(float64(n))
	m.logger.Info("snapshot saved",
		zap.String("path", m.path),
		zap.Int("entries", len(snap)),
		zap.Int("bytes", n))
	return nil
}

func (m *Manager) save(snap vectorstore.Snapshot) (int, error) {
	if snap == nil {
		snap = vectorstore.Snapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if m.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return 0, fmt.Errorf("failed to compress snapshot: %w", err)
		}
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("failed to compress snapshot: %w", err)
		}
		data = buf.Bytes()
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err := writeFileAtomic(m.path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot file and, if it is valid, installs it in store.
//
// The returned error is non-nil only for OutcomeLoadError and carries the
// cause. The store is modified only when the outcome is OutcomeLoaded.
func (m *Manager) Load(ctx context.Context, store Replacer) (LoadOutcome, error) {
	_, span := m.tracer.Start(ctx, "persistence.load")
	defer span.End()
	span.SetAttributes(attribute.String("path", m.path))

	outcome, snap, err := m.load()
	if err == nil && outcome == OutcomeLoaded {
		if rerr := store.Replace(snap); rerr != nil {
			outcome, err = OutcomeLoadError, fmt.Errorf("failed to install snapshot: %w", rerr)
		}
	}

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	OperationsTotal.WithLabelValues(opLoad, outcome.String()).Inc()

	switch outcome {
	case OutcomeNoFile:
		m.logger.Info("no snapshot to load", zap.String("path", m.path))
	case OutcomeLoaded:
		m.logger.Info("snapshot loaded",
			zap.String("path", m.path),
			zap.Int("entries", len(snap)))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("snapshot load failed",
			zap.String("path", m.path),
			zap.Error(err))
	}
	return outcome, err
}

func (m *Manager) load() (LoadOutcome, vectorstore.Snapshot, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OutcomeNoFile, nil, nil
		}
		return OutcomeLoadError, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	SnapshotBytes.WithLabelValues(opLoad).Set(float64(len(raw)))

	data := raw
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return OutcomeLoadError, nil, fmt.Errorf("failed to open compressed snapshot: %w", err)
		}
		data, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return OutcomeLoadError, nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
	}

	var snap vectorstore.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return OutcomeLoadError, nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap == nil {
		return OutcomeLoadError, nil, errors.New("snapshot is not a JSON object")
	}

	for id, v := range snap {
		if err := vectorstore.ValidateEntry(id, v); err != nil {
			return OutcomeLoadError, nil, fmt.Errorf("invalid snapshot entry: %w", err)
		}
	}

	return OutcomeLoaded, snap, nil
}
