// Package embeddings provides embedding generation via multiple providers.
// The hashing provider is the default: it is deterministic and needs no
// model downloads, which keeps index builds reproducible and offline.
package embeddings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates the underlying model or service failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	retrieval.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "hashing" (default), "fastembed" or "tei".
	Provider string
	// Model is the embedding model name (fastembed and tei).
	Model string
	// BaseURL is the TEI endpoint (tei only).
	BaseURL string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
	// Dimension overrides the vector dimension (hashing only).
	Dimension int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "hashing", "":
		return NewHashingProvider(cfg.Dimension)
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		svc, err := NewTEIService(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		return &teiProvider{TEIService: svc, dimension: detectDimensionFromModel(cfg.Model)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384
	}
}

// teiProvider wraps TEIService to implement the Provider interface.
type teiProvider struct {
	*TEIService
	dimension int
}

// Dimension returns the embedding dimension based on the configured model.
func (t *teiProvider) Dimension() int {
	return t.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (t *teiProvider) Close() error {
	return nil
}
