// Package retrieval builds and queries the documentation index that grounds
// the generation pipeline. Corpus documents are chunked, embedded, and
// stored in a vector store; queries return scored snippets. Builds are
// reproducible: the same corpus and embedder always produce the same index,
// and save/load round-trips preserve query results exactly.
package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable indicates the index was never built or loaded.
	// Stages that require retrieval treat this as fatal.
	ErrIndexUnavailable = errors.New("retrieval index unavailable (not built or loaded)")

	// ErrInvalidConfig indicates invalid store or index configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an add or build with no documents.
	ErrEmptyDocuments = errors.New("documents cannot be empty")

	// ErrEmbeddingFailed indicates the embedder failed during add or query.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrPersistenceUnsupported indicates the store backend keeps its data
	// server-side and cannot export to or import from a local file.
	ErrPersistenceUnsupported = errors.New("store does not support file persistence")

	// ErrConnectionFailed indicates a remote store could not be reached.
	ErrConnectionFailed = errors.New("store connection failed")
)

// Document is one corpus document prior to chunking.
type Document struct {
	Content string `json:"content"`

	// Source identifies where the document came from (URL or path).
	Source string `json:"source"`

	// Heading is an optional title for the document.
	Heading string `json:"heading,omitempty"`
}

// Chunk is an embeddable slice of a corpus document. Chunk IDs encode the
// source and per-source sequence so insertion order is stable across builds.
type Chunk struct {
	ID      string
	Content string
	Source  string
	Heading string

	// Seq is the chunk's position within its source document.
	Seq int
}

// SearchResult is one scored hit from the index.
type SearchResult struct {
	ID      string
	Content string
	Score   float32
	Source  string
	Heading string

	// Pos is the global insertion position, used to break score ties
	// deterministically.
	Pos int
}

// Embedder generates embeddings for documents and queries.
type Embedder interface {
	// EmbedDocuments generates embeddings for a batch of texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is a vector store holding one collection of chunks.
type Store interface {
	// Add embeds and inserts chunks in order. Insertion order is part of
	// the store's contract: it assigns each chunk a global position.
	Add(ctx context.Context, chunks []Chunk) error

	// Query returns up to k results ordered by score descending, ties
	// broken by insertion position. k greater than the chunk count is
	// clamped; an empty store returns an empty slice.
	Query(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count() int

	// Close releases resources held by the store.
	Close() error
}

// Persistent is implemented by stores whose contents round-trip through a
// file on disk.
type Persistent interface {
	// Export writes the store contents to path atomically.
	Export(path string) error

	// Import replaces the store contents from path.
	Import(path string) error
}
