package vectorstore

import (
	"sync"

	"go.uber.org/zap"
)

// MemoryStore implements Store with a map guarded by a reader/writer lock.
//
// Snapshot and Len take the read lock and may run concurrently. Upsert,
// UpsertMany and Replace take the write lock. Critical sections only touch
// the map; validation and copying of inputs happen before the lock is
// acquired.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string]Vector
	logger  *zap.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		vectors: make(map[string]Vector),
		logger:  logger,
	}
}

// Upsert inserts or overwrites the vector for id.
func (s *MemoryStore) Upsert(id string, vector Vector) error {
	if err := ValidateEntry(id, vector); err != nil {
		return err
	}
	v := vector.Clone()

	s.mu.Lock()
	s.vectors[id] = v
	recordUpserts(1, len(s.vectors))
	s.mu.Unlock()

	return nil
}

// UpsertMany applies all entries under a single write lock.
func (s *MemoryStore) UpsertMany(entries []Entry) (int, error) {
	batch := make([]Entry, len(entries))
	for i, e := range entries {
		if err := ValidateEntry(e.ID, e.Vector); err != nil {
			return 0, err
		}
		batch[i] = Entry{ID: e.ID, Vector: e.Vector.Clone()}
	}

	s.mu.Lock()
	for _, e := range batch {
		s.vectors[e.ID] = e.Vector
	}
	n := len(s.vectors)
	recordUpserts(len(batch), n)
	s.mu.Unlock()

	s.logger.Debug("batch upserted",
		zap.Int("batch_size", len(batch)),
		zap.Int("entries", n))

	return n, nil
}

// Snapshot returns a deep copy of the store contents.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.vectors))
	for id, v := range s.vectors {
		snap[id] = v.Clone()
	}
	return snap
}

// Get returns a copy of the vector stored for id.
func (s *MemoryStore) Get(id string) (Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vectors[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Replace swaps the store contents for snap. Every entry is validated
// first; on error the store is left untouched.
func (s *MemoryStore) Replace(snap Snapshot) error {
	next := make(map[string]Vector, len(snap))
	for id, v := range snap {
		if err := ValidateEntry(id, v); err != nil {
			return err
		}
		next[id] = v.Clone()
	}

	s.mu.Lock()
	prev := len(s.vectors)
	s.vectors = next
	recordReplace(len(next))
	s.mu.Unlock()

	s.logger.Info("store contents replaced",
		zap.Int("previous_entries", prev),
		zap.Int("entries", len(next)))

	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
