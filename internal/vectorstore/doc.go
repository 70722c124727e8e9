// Package vectorstore provides a concurrent keyed vector store and exact
// cosine-similarity search over its snapshots.
//
// # Usage
//
//	store := vectorstore.NewMemoryStore(logger)
//
//	if err := store.Upsert("a", vec); err != nil {
//	    return err
//	}
//
//	// Rank without holding the store lock
//	hits := vectorstore.ExactSearch(query, store.Snapshot(), vectorstore.DefaultTopK)
//
// # Invariants
//
//   - Every vector has exactly Dimension components. Writes with any other
//     length fail with *ErrDimensionMismatch (errors.Is ErrInvalidVector).
//   - Re-inserting an id overwrites its vector. No history is kept.
//   - Snapshots are deep copies and never alias store memory.
//   - UpsertMany and Replace are all-or-nothing with respect to readers.
//
// # Ranking
//
// ExactSearch scores with dot(a,b) / max(|a|*|b|, 1e-8), sorts by score
// descending and breaks ties by id ascending.
//
// # Metrics
//
// Store size, write counts and search latency are exported through the
// default Prometheus registry under the vecsearch namespace.
package vectorstore
