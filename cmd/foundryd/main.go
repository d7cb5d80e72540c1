// Foundryd is the notebook generation daemon.
//
// It serves the generation pipeline over HTTP: constraint extraction,
// documentation retrieval, composition, validation and repair, and
// packaging of the resulting notebook artifact.
//
// Configuration is loaded from ~/.config/foundryd/config.yaml and
// overridden by environment variables:
//
//	# Start with defaults
//	foundryd
//
//	# Configure via environment
//	SERVER_PORT=9000 RETRIEVAL_PROVIDER=qdrant foundryd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/config"
	"github.com/fyrsmithlabs/foundryd/internal/embeddings"
	"github.com/fyrsmithlabs/foundryd/internal/extraction"
	"github.com/fyrsmithlabs/foundryd/internal/generator"
	"github.com/fyrsmithlabs/foundryd/internal/httpapi"
	"github.com/fyrsmithlabs/foundryd/internal/logging"
	"github.com/fyrsmithlabs/foundryd/internal/pipeline"
	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
	"github.com/fyrsmithlabs/foundryd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/foundryd/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  foundryd           Start the generation daemon\n")
			fmt.Fprintf(os.Stderr, "  foundryd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("foundryd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
//  1. Load and validate configuration
//  2. Initialize telemetry and the logger
//  3. Build the embedding provider, retrieval index and extractor
//  4. Wire the generation service and load any persisted index
//  5. Serve HTTP until shutdown
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Stdout: cfg.Logging.Stdout || !cfg.Logging.OTEL,
		OTEL:   cfg.Logging.OTEL,
	}, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting foundryd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("retrieval_provider", cfg.Retrieval.Provider),
		zap.Bool("telemetry", tel.IsEnabled()))

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		CacheDir:  cfg.Embeddings.CacheDir,
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	defer embedder.Close()

	index, err := retrieval.NewIndex(retrieval.IndexConfig{
		RetrieveK: cfg.Retrieval.RetrieveK,
		Chunker: retrieval.ChunkerConfig{
			ChunkSize:    cfg.Retrieval.ChunkSize,
			ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		},
		Store:       storeConfig(cfg, embedder.Dimension()),
		PersistPath: cfg.Retrieval.IndexPath,
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to create retrieval index: %w", err)
	}

	extractor, err := extraction.NewExtractor(extraction.Config{
		Provider: cfg.Extraction.Provider,
		Model:    cfg.Extraction.Model,
		APIKey:   cfg.Extraction.APIKey.Value(),
		BaseURL:  cfg.Extraction.BaseURL,
		Timeout:  cfg.Extraction.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	svc, err := generator.NewService(generator.Config{
		OutputDir:  cfg.Generator.OutputDir,
		RulesPath:  cfg.Generator.RulesPath,
		RetrieveK:  cfg.Retrieval.RetrieveK,
		CorpusPath: cfg.Retrieval.CorpusPath,
		CorpusURLs: cfg.Retrieval.CorpusURLs,
		IndexPath:  cfg.Retrieval.IndexPath,
		Pipeline:   pipeline.Config{MaxAttempts: cfg.Generator.MaxAttempts},
	}, extractor, index, logger)
	if err != nil {
		return fmt.Errorf("failed to create generation service: %w", err)
	}
	defer func() {
		_ = svc.Close()
	}()

	// A persisted index makes the daemon ready without a rebuild.
	if cfg.Retrieval.IndexPath != "" {
		if err := svc.LoadIndex(); err != nil {
			logger.Warn("no persisted index loaded", zap.Error(err))
		} else {
			logger.Info("persisted index loaded", zap.Int("chunks", svc.Status().Chunks))
		}
	}

	if cfg.Retrieval.Watch {
		watcher, err := retrieval.NewCorpusWatcher(cfg.Retrieval.CorpusPath, 0, logger)
		if err != nil {
			return fmt.Errorf("failed to create corpus watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start corpus watcher: %w", err)
		}
		defer watcher.Stop()

		go func() {
			for range watcher.Events() {
				logger.Info("corpus changed, rebuilding index")
				if err := svc.RebuildIndex(ctx); err != nil {
					logger.Error("index rebuild failed", zap.Error(err))
				}
			}
		}()
	}

	server, err := httpapi.NewServer(svc, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, version)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	server.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// telemetryConfig maps the root config section onto the telemetry
// package config.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
	}
	tc.Protocol = cfg.Telemetry.Protocol
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.Insecure = cfg.Telemetry.Insecure
	tc.TLSSkipVerify = cfg.Telemetry.TLSSkipVerify
	return tc
}

// storeConfig maps the retrieval section onto the store factory config.
func storeConfig(cfg *config.Config, dimension int) retrieval.StoreConfig {
	sc := retrieval.StoreConfig{Provider: cfg.Retrieval.Provider}
	switch cfg.Retrieval.Provider {
	case "qdrant":
		sc.Qdrant = retrieval.QdrantConfig{
			Host:       cfg.Retrieval.Qdrant.Host,
			Port:       cfg.Retrieval.Qdrant.Port,
			Collection: cfg.Retrieval.Qdrant.Collection,
			VectorSize: uint64(dimension),
		}
	default:
		sc.Chromem = retrieval.ChromemConfig{VectorSize: dimension}
	}
	return sc
}
