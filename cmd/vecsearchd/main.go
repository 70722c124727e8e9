// Vecsearchd serves the vecsearch HTTP API over an in-memory vector store.
//
// Configuration is loaded from ~/.config/vecsearch/config.yaml (or the file
// named by --config / VECSEARCH_CONFIG) and VECSEARCH_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	vecsearchd
//
//	# Configure via environment
//	VECSEARCH_SERVER_HTTP_PORT=9000 VECSEARCH_PERSISTENCE_LOAD_ON_START=true vecsearchd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vecsearch/internal/config"
	"github.com/fyrsmithlabs/vecsearch/internal/embeddings"
	httpapi "github.com/fyrsmithlabs/vecsearch/internal/http"
	"github.com/fyrsmithlabs/vecsearch/internal/logging"
	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/telemetry"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/vecsearch/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vecsearchd [--config path]   Start the vecsearch daemon\n")
			fmt.Fprintf(os.Stderr, "  vecsearchd version           Show version information\n")
			os.Exit(1)
		}
	}

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("vecsearchd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and blocks until ctx is cancelled.
//
//  1. Initializes telemetry and the logger
//  2. Builds store, embedder, persistence manager and service
//  3. Optionally loads the snapshot
//  4. Runs the HTTP server and the autosave loop
//  5. Optionally saves the snapshot after the server stops
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()
	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if reason := tel.Degraded(); reason != "" {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	logger.Info(ctx, "starting vecsearchd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("snapshot", cfg.Persistence.Path),
		zap.Bool("telemetry", tel.Enabled()))

	svc, err := initService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.Persistence.LoadOnStart {
		loadOnStart(ctx, svc, logger)
	}

	srv, err := httpapi.NewServer(svc, logger.Component("http"), &httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if interval := cfg.Persistence.AutosaveInterval.Duration(); interval > 0 {
		g.Go(func() error {
			autosave(gctx, svc, interval, logger)
			return nil
		})
	}

	runErr := g.Wait()

	if cfg.Persistence.SaveOnShutdown {
		saveCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := svc.Save(saveCtx); err != nil {
			logger.Error(saveCtx, "save on shutdown failed", zap.Error(err))
			runErr = errors.Join(runErr, fmt.Errorf("save on shutdown: %w", err))
		} else {
			logger.Info(saveCtx, "snapshot saved on shutdown", zap.String("path", cfg.Persistence.Path))
		}
	}

	logger.Info(context.Background(), "vecsearchd stopped")
	return runErr
}

// initLogger builds the structured logger. OTEL output is enabled when
// telemetry is.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc := logging.DefaultConfig()

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Service = cfg.Telemetry.ServiceName
	lc.OTEL = tel.Enabled()

	return logging.New(lc, tel.LoggerProvider())
}

// initService builds the store, embedder and persistence layer behind the
// semantic service.
func initService(cfg *config.Config, logger *logging.Logger) (*semantic.Service, error) {
	store := vectorstore.NewMemoryStore(logger.Component("vectorstore"))

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   cfg.Embeddings.Provider,
		Logger:     logger.Component("embeddings"),
		Instrument: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	pm := persistence.NewManager(persistence.Config{
		Path:     cfg.Persistence.Path,
		Compress: cfg.Persistence.Compress,
	}, logger.Component("persistence"))

	return semantic.NewService(semantic.Config{
		DefaultTopK: cfg.Search.DefaultTopK,
	}, store, embedder, pm, logger.Component("semantic"))
}

// loadOnStart restores the snapshot. A failed load leaves the store empty
// and boot continues.
func loadOnStart(ctx context.Context, svc *semantic.Service, logger *logging.Logger) {
	outcome, err := svc.Load(ctx)
	switch outcome {
	case persistence.OutcomeLoaded:
		logger.Info(ctx, "snapshot loaded", zap.Int("entries", svc.Stats().Entries))
	case persistence.OutcomeNoFile:
		logger.Info(ctx, "no snapshot to load")
	default:
		logger.Error(ctx, "snapshot load failed, starting empty", zap.Error(err))
	}
}

// autosave saves the store every interval until ctx is cancelled. Failures
// are logged and the loop continues.
func autosave(ctx context.Context, svc *semantic.Service, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Save(ctx); err != nil {
				logger.Warn(ctx, "autosave failed", zap.Error(err))
				continue
			}
			logger.Debug(ctx, "autosave complete", zap.Int("entries", svc.Stats().Entries))
		}
	}
}
