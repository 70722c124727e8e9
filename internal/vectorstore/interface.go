package vectorstore

import (
	"errors"
	"fmt"
)

// Dimension is the length of every vector held by the store.
const Dimension = 8

// DefaultTopK is the number of hits returned when a caller does not ask
// for a specific count.
const DefaultTopK = 5

// Sentinel errors for vector store operations.
var (
	// ErrEmptyID is returned when an entry has no identifier.
	ErrEmptyID = errors.New("entry id cannot be empty")

	// ErrInvalidVector is returned when a vector does not fit the store.
	// Use errors.As with *ErrDimensionMismatch for the details.
	ErrInvalidVector = errors.New("invalid vector")
)

// ErrDimensionMismatch indicates a vector whose length is not Dimension.
type ErrDimensionMismatch struct {
	ID       string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch for %q: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

// Unwrap lets errors.Is match ErrInvalidVector.
func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidVector }

// Vector is a fixed-length embedding.
type Vector []float32

// Entry pairs an identifier with its vector.
type Entry struct {
	ID     string `json:"id"`
	Vector Vector `json:"vector"`
}

// Snapshot is a point-in-time copy of the store contents.
//
// A Snapshot never shares memory with the store that produced it, so it
// can be read, ranked or serialized without holding any lock.
type Snapshot map[string]Vector

// SearchResult is a single ranked hit.
type SearchResult struct {
	// ID is the entry identifier.
	ID string `json:"id"`

	// Score is the cosine similarity to the query (higher = more similar).
	Score float64 `json:"score"`
}

// Store is the interface for keyed vector storage.
//
// Implementations must be safe for concurrent use. Reads may run in
// parallel; writes are exclusive and a concurrent reader observes either
// the state before a write or the state after it, never a partial write.
type Store interface {
	// Upsert inserts the vector for id or overwrites the existing one.
	Upsert(id string, vector Vector) error

	// UpsertMany applies a batch of upserts atomically and returns the
	// number of entries in the store after the batch. If any entry is
	// invalid the whole batch is rejected and the store is unchanged.
	UpsertMany(entries []Entry) (int, error)

	// Snapshot returns an independent copy of the full mapping.
	Snapshot() Snapshot

	// Replace discards the current contents and installs snap.
	Replace(snap Snapshot) error

	// Len returns the number of entries.
	Len() int
}

// ValidateEntry checks an id/vector pair against the store invariants.
func ValidateEntry(id string, vector Vector) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(vector) != Dimension {
		return &ErrDimensionMismatch{ID: id, Expected: Dimension, Actual: len(vector)}
	}
	return nil
}

// Clone returns a deep copy of the vector.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, v := range s {
		out[id] = v.Clone()
	}
	return out
}
