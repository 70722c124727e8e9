// Package http provides the HTTP API for vecsearch.
package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/vecsearch/internal/logging"
	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// Backend is the set of operations the HTTP layer exposes.
type Backend interface {
	Embed(ctx context.Context, text string) (vectorstore.Vector, error)
	Index(ctx context.Context, id, text string) error
	IndexBulk(ctx context.Context, items []semantic.Item) (int, error)
	Search(ctx context.Context, req semantic.SearchRequest) ([]vectorstore.SearchResult, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) (persistence.LoadOutcome, error)
	Stats() semantic.Stats
}

// Server provides HTTP endpoints for vecsearch.
type Server struct {
	echo    *echo.Echo
	backend Backend
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// ShutdownTimeout bounds graceful shutdown in Start (default: 10s).
	ShutdownTimeout time.Duration

	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the number of requests a client may burst above
	// RateLimit. Defaults to the ceiling of RateLimit, at least 1, when zero.
	RateBurst int
}

// DefaultConfig returns the listener defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new HTTP server.
func NewServer(backend Backend, logger *zap.Logger, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(logger))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     rateBurst(cfg),
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	s := &Server{
		echo:    e,
		backend: backend,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// rateBurst returns the configured burst, or ceil(RateLimit) but never less
// than one request.
func rateBurst(cfg *Config) int {
	if cfg.RateBurst > 0 {
		return cfg.RateBurst
	}
	return max(1, int(math.Ceil(cfg.RateLimit)))
}

// requestLogger logs one line per request, correlated with the request ID
// and any active trace.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := append(logging.ContextFields(ctx),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			logger.Info("http request", fields...)

			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/embed", s.handleEmbed)
	s.echo.POST("/index", s.handleIndex)
	s.echo.POST("/index/bulk", s.handleIndexBulk)
	s.echo.POST("/search", s.handleSearch)
	s.echo.POST("/persist/save", s.handleSave)
	s.echo.POST("/persist/load", s.handleLoad)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the bound listener address, or nil before Start binds.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
// within the configured timeout. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
