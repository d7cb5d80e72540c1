package retrieval

import (
	"fmt"

	"go.uber.org/zap"
)

// StoreConfig selects and configures a store backend.
type StoreConfig struct {
	// Provider is "chromem" (default, embedded) or "qdrant" (remote).
	Provider string

	Chromem ChromemConfig
	Qdrant  QdrantConfig
}

// NewStore creates a Store based on the configuration.
//
// The chromem provider is the default: embedded, zero external services,
// and the only backend supporting file persistence (index save/load).
// The qdrant provider targets a remote server and is appropriate when the
// corpus outgrows a single process.
func NewStore(cfg StoreConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(cfg.Chromem, embedder, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant, embedder)
	default:
		return nil, fmt.Errorf("%w: unsupported store provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
