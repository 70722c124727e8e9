// Package embeddings turns text into fixed-dimension vectors.
//
// Callers depend on the Embedder interface only. The sole provider today
// is ByteEmbedder, a deterministic stand-in that folds UTF-8 bytes into
// vectorstore.Dimension slots; a model-backed provider can replace it via
// NewProvider without touching the store or search code.
package embeddings
