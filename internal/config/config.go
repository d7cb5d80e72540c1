// Package config loads and validates foundryd configuration from YAML
// files and environment variables. Sections are plain structs that the
// daemon maps onto package-level configs at wire-up time, so this
// package has no dependencies on the packages it configures.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the foundryd daemon.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Generator  GeneratorConfig  `koanf:"generator"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`

	Stdout bool `koanf:"stdout"`

	// OTEL forwards log records to the OTLP log exporter when telemetry
	// is enabled.
	OTEL bool `koanf:"otel"`
}

// TelemetryConfig controls the OpenTelemetry exporters.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Insecure       bool   `koanf:"insecure"`
	TLSSkipVerify  bool   `koanf:"tls_skip_verify"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "hashing" (default), "fastembed" or "tei".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`

	// Dimension overrides the vector dimension for the hashing provider.
	Dimension int `koanf:"dimension"`
}

// ExtractionConfig selects and configures the constraint extractor.
type ExtractionConfig struct {
	// Provider is "heuristic" (default), "openai" or "disabled".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `koanf:"timeout"`
}

// RetrievalConfig configures the documentation index.
type RetrievalConfig struct {
	// Provider is "chromem" (default, embedded) or "qdrant".
	Provider string `koanf:"provider"`

	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
	RetrieveK    int `koanf:"retrieve_k"`

	// CorpusPath is the JSON document cache read on index rebuild.
	CorpusPath string `koanf:"corpus_path"`

	// CorpusURLs are fetched when the cache is missing.
	CorpusURLs []string `koanf:"corpus_urls"`

	// IndexPath persists the built index across restarts (chromem only).
	IndexPath string `koanf:"index_path"`

	// Watch rebuilds the index when the corpus file changes on disk.
	Watch bool `koanf:"watch"`

	Qdrant QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig points retrieval at a remote Qdrant server.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
}

// GeneratorConfig controls the generation pipeline.
type GeneratorConfig struct {
	// OutputDir is the base directory for packaged runs.
	OutputDir string `koanf:"output_dir"`

	// RulesPath optionally points at a TOML validation ruleset.
	RulesPath string `koanf:"rules_path"`

	// MaxAttempts bounds the repair loop.
	MaxAttempts int `koanf:"max_attempts"`
}

// New returns a Config populated with defaults.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8750
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "foundryd"
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = "grpc"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "hashing"
	}
	if c.Extraction.Provider == "" {
		c.Extraction.Provider = "heuristic"
	}
	if c.Retrieval.Provider == "" {
		c.Retrieval.Provider = "chromem"
	}
	if c.Retrieval.RetrieveK == 0 {
		c.Retrieval.RetrieveK = 4
	}
	if c.Retrieval.CorpusPath == "" {
		c.Retrieval.CorpusPath = "corpus/documents.json"
	}
	if c.Generator.OutputDir == "" {
		c.Generator.OutputDir = "generated"
	}
	if c.Generator.MaxAttempts == 0 {
		c.Generator.MaxAttempts = 3
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
	}
	switch c.Embeddings.Provider {
	case "hashing", "fastembed", "tei":
	default:
		return fmt.Errorf("embeddings.provider must be hashing, fastembed or tei, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url is required for the tei provider")
	}
	switch c.Extraction.Provider {
	case "heuristic", "openai", "disabled":
	default:
		return fmt.Errorf("extraction.provider must be heuristic, openai or disabled, got %q", c.Extraction.Provider)
	}
	if c.Extraction.Provider == "openai" && c.Extraction.APIKey.Value() == "" {
		return fmt.Errorf("extraction.api_key is required for the openai provider")
	}
	switch c.Retrieval.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("retrieval.provider must be chromem or qdrant, got %q", c.Retrieval.Provider)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkSize < 0 {
		return fmt.Errorf("retrieval chunk sizes must be >= 0")
	}
	if c.Retrieval.ChunkSize > 0 && c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap %d must be smaller than chunk_size %d",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.Generator.MaxAttempts < 0 {
		return fmt.Errorf("generator.max_attempts must be >= 0, got %d", c.Generator.MaxAttempts)
	}
	return nil
}
