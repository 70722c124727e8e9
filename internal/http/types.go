package http

import (
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// Persist statuses reported by /persist/save and /persist/load.
const (
	StatusOK        = "ok"
	StatusSaved     = "saved"
	StatusSaveError = "save_error"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// EmbedRequest is the request body for POST /embed.
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is the response body for POST /embed.
type EmbedResponse struct {
	Vector vectorstore.Vector `json:"vector"`
}

// IndexRequest is the request body for POST /index.
type IndexRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// IndexResponse is the response body for POST /index and /index/bulk.
// For bulk requests Indexed is the store size after the batch, not the
// batch size.
type IndexResponse struct {
	Indexed int `json:"indexed"`
}

// BulkIndexRequest is the request body for POST /index/bulk.
type BulkIndexRequest struct {
	Items []semantic.Item `json:"items"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Hits []vectorstore.SearchResult `json:"hits"`
}

// PersistResponse is the response body for POST /persist/save and
// /persist/load.
type PersistResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatsResponse is the response body for GET /stats.
type StatsResponse = semantic.Stats
