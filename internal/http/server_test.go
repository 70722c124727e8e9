package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/vecsearch/internal/embeddings"
	"github.com/fyrsmithlabs/vecsearch/internal/logging"
	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

type testEnv struct {
	server *Server
	store  *vectorstore.MemoryStore
	path   string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "store.json")
	store := vectorstore.NewMemoryStore(zap.NewNop())
	pm := persistence.NewManager(persistence.Config{Path: path}, zap.NewNop())
	svc, err := semantic.NewService(semantic.Config{}, store, embeddings.NewByteEmbedder(), pm, zap.NewNop())
	require.NoError(t, err)

	server, err := NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)

	return &testEnv{server: server, store: store, path: path}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case string:
		req = httptest.NewRequest(method, target, strings.NewReader(b))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	e.server.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	svc := setupTestServer(t).server.backend

	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: time.Second,
		}

		server, err := NewServer(svc, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(svc, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.Equal(t, 10*time.Second, server.config.ShutdownTimeout)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(svc, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when backend is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "backend cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestID_Propagated(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-abc-123")
	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLogger(t *testing.T) {
	logger := logging.NewTestLogger()
	store := vectorstore.NewMemoryStore(logger.Component("vectorstore"))
	pm := persistence.NewManager(persistence.Config{Path: filepath.Join(t.TempDir(), "store.json")}, logger.Component("persistence"))
	svc, err := semantic.NewService(semantic.Config{}, store, embeddings.NewByteEmbedder(), pm, logger.Component("semantic"))
	require.NoError(t, err)
	server, err := NewServer(svc, logger.Component("http"), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query": "confidential merger plans"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	fields := logger.Logged(t, zapcore.InfoLevel, "http request")
	assert.Equal(t, "req-42", fields["request.id"])
	assert.Equal(t, "/search", fields["uri"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	logger.AssertNoContent(t, "confidential merger plans")
}

func TestHandleEmbed(t *testing.T) {
	t.Run("returns eight components", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/embed", EmbedRequest{Text: "hello"})

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[EmbedResponse](t, rec)
		require.Len(t, resp.Vector, vectorstore.Dimension)
		assert.Equal(t, embeddings.EmbedBytes("hello"), resp.Vector)
	})

	t.Run("empty text yields the zero vector", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/embed", `{"text": ""}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, make(vectorstore.Vector, vectorstore.Dimension), decode[EmbedResponse](t, rec).Vector)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/embed", `{"text": `)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/embed", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects wrong field type", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/embed", `{"text": 42}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleIndex(t *testing.T) {
	t.Run("indexes one entry", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "hello"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[IndexResponse](t, rec).Indexed)
		assert.Equal(t, 1, env.store.Len())
	})

	t.Run("re-indexing reports one and keeps size", func(t *testing.T) {
		env := setupTestServer(t)

		env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "hello"})
		rec := env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "hello"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[IndexResponse](t, rec).Indexed)
		assert.Equal(t, 1, env.store.Len())
	})

	t.Run("rejects empty id", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/index", IndexRequest{ID: "", Text: "hello"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, env.store.Len())
	})
}

func TestHandleIndexBulk(t *testing.T) {
	t.Run("reports store size after the batch", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: []semantic.Item{
			{ID: "a", Text: "alpha"},
			{ID: "b", Text: "beta"},
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode[IndexResponse](t, rec).Indexed)

		rec = env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: []semantic.Item{
			{ID: "a", Text: "alpha again"},
			{ID: "c", Text: "gamma"},
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, decode[IndexResponse](t, rec).Indexed)
	})

	t.Run("empty items reports current size", func(t *testing.T) {
		env := setupTestServer(t)
		env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "x"})

		rec := env.do(t, http.MethodPost, "/index/bulk", `{"items": []}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[IndexResponse](t, rec).Indexed)
	})

	t.Run("empty id rejects the whole batch", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: []semantic.Item{
			{ID: "a", Text: "alpha"},
			{ID: "", Text: "nameless"},
		}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, env.store.Len())
	})
}

func TestHandleSearch(t *testing.T) {
	seed := func(t *testing.T, env *testEnv, n int) {
		t.Helper()
		items := make([]semantic.Item, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, semantic.Item{ID: fmt.Sprintf("doc-%02d", i), Text: fmt.Sprintf("document %d", i)})
		}
		rec := env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: items})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("self similarity ranks first", func(t *testing.T) {
		env := setupTestServer(t)
		env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: []semantic.Item{
			{ID: "h", Text: "hello"},
			{ID: "w", Text: "world"},
		}})

		rec := env.do(t, http.MethodPost, "/search", `{"query": "hello", "top_k": 2}`)

		require.Equal(t, http.StatusOK, rec.Code)
		hits := decode[SearchResponse](t, rec).Hits
		require.Len(t, hits, 2)
		assert.Equal(t, "h", hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	})

	t.Run("omitted top_k defaults to five", func(t *testing.T) {
		env := setupTestServer(t)
		seed(t, env, 8)

		rec := env.do(t, http.MethodPost, "/search", `{"query": "document"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[SearchResponse](t, rec).Hits, vectorstore.DefaultTopK)
	})

	t.Run("top_k zero yields empty hits", func(t *testing.T) {
		env := setupTestServer(t)
		seed(t, env, 3)

		rec := env.do(t, http.MethodPost, "/search", `{"query": "document", "top_k": 0}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"hits": []}`, rec.Body.String())
	})

	t.Run("top_k larger than store returns all", func(t *testing.T) {
		env := setupTestServer(t)
		seed(t, env, 3)

		rec := env.do(t, http.MethodPost, "/search", `{"query": "document", "top_k": 50}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[SearchResponse](t, rec).Hits, 3)
	})

	t.Run("negative top_k is rejected", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/search", `{"query": "document", "top_k": -1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty store yields empty hits", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/search", `{"query": "anything"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"hits": []}`, rec.Body.String())
	})
}

func TestHandlePersist(t *testing.T) {
	t.Run("load without file reports no_file", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodPost, "/persist/load", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "no_file"}`, rec.Body.String())
	})

	t.Run("save then load restores the snapshot", func(t *testing.T) {
		env := setupTestServer(t)
		env.do(t, http.MethodPost, "/index/bulk", BulkIndexRequest{Items: []semantic.Item{
			{ID: "h", Text: "hello"},
			{ID: "w", Text: "world"},
		}})
		want := env.store.Snapshot()

		rec := env.do(t, http.MethodPost, "/persist/save", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "saved"}`, rec.Body.String())
		assert.FileExists(t, env.path)

		env.do(t, http.MethodPost, "/index", IndexRequest{ID: "later", Text: "later"})

		rec = env.do(t, http.MethodPost, "/persist/load", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "loaded"}`, rec.Body.String())
		assert.Equal(t, want, env.store.Snapshot())
	})

	t.Run("corrupt file reports load_error", func(t *testing.T) {
		env := setupTestServer(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(env.path), 0o755))
		require.NoError(t, os.WriteFile(env.path, []byte("not json"), 0o600))
		env.do(t, http.MethodPost, "/index", IndexRequest{ID: "keep", Text: "keep"})

		rec := env.do(t, http.MethodPost, "/persist/load", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[PersistResponse](t, rec)
		assert.Equal(t, "load_error", resp.Status)
		assert.NotEmpty(t, resp.Error)
		assert.Equal(t, 1, env.store.Len())
	})

	t.Run("save failure reports save_error", func(t *testing.T) {
		server, err := NewServer(&stubBackend{saveErr: errors.New("disk full")}, zap.NewNop(), nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/persist/save", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"status": "save_error", "error": "disk full"}`, rec.Body.String())
	})
}

func TestHandleStats(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "x"})

	rec := env.do(t, http.MethodGet, "/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, vectorstore.Dimension, stats.Dimension)
	assert.Equal(t, env.path, stats.SnapshotPath)
}

func TestHandleMetrics(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodPost, "/index", IndexRequest{ID: "x", Text: "x"})

	rec := env.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vecsearch_store_entries")
}

func TestRateLimit(t *testing.T) {
	svc := setupTestServer(t).server.backend
	server, err := NewServer(svc, zap.NewNop(), &Config{RateLimit: 1, RateBurst: 1})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes[1:], http.StatusTooManyRequests)
}

func TestRateLimit_FractionalRateWithoutBurst(t *testing.T) {
	svc := setupTestServer(t).server.backend
	server, err := NewServer(svc, zap.NewNop(), &Config{RateLimit: 0.5})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateBurst(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"explicit burst", Config{RateLimit: 10, RateBurst: 3}, 3},
		{"ceiling of rate", Config{RateLimit: 2.5}, 3},
		{"fractional rate", Config{RateLimit: 0.5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rateBurst(&tt.cfg))
		})
	}
}

func TestServer_StartShutdown(t *testing.T) {
	svc := setupTestServer(t).server.backend
	server, err := NewServer(svc, zap.NewNop(), &Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool { return server.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + server.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type stubBackend struct {
	saveErr error
}

func (s *stubBackend) Embed(context.Context, string) (vectorstore.Vector, error) {
	return make(vectorstore.Vector, vectorstore.Dimension), nil
}
func (s *stubBackend) Index(context.Context, string, string) error { return nil }
func (s *stubBackend) IndexBulk(context.Context, []semantic.Item) (int, error) {
	return 0, nil
}
func (s *stubBackend) Search(context.Context, semantic.SearchRequest) ([]vectorstore.SearchResult, error) {
	return []vectorstore.SearchResult{}, nil
}
func (s *stubBackend) Save(context.Context) error { return s.saveErr }
func (s *stubBackend) Load(context.Context) (persistence.LoadOutcome, error) {
	return persistence.OutcomeNoFile, nil
}
func (s *stubBackend) Stats() semantic.Stats { return semantic.Stats{} }
