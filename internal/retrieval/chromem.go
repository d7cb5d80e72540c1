package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("foundryd.retrieval.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Collection is the collection name. Default: "foundryd_docs".
	Collection string

	// Compress enables gzip compression for exported data.
	Compress bool

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output. Default: 384.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "foundryd_docs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable vector
// database with no external service. Contents live in memory; Export and
// Import move them through a single file, which is what gives the index its
// copy-on-build save/load semantics.
type ChromemStore struct {
	mu       sync.RWMutex
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	// nextPos is the global insertion position assigned to added chunks.
	nextPos int
}

// NewChromemStore creates an empty in-memory chromem store.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	s := &ChromemStore{
		db:       chromem.NewDB(),
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Debug("chromem store initialized",
		zap.String("collection", config.Collection),
		zap.Int("vector_size", config.VectorSize),
	)
	return s, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time interface.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds chunks in one batch and inserts them in order.
func (s *ChromemStore) Add(ctx context.Context, chunks []Chunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return ErrEmptyDocuments
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				"source":  c.Source,
				"heading": c.Heading,
				"seq":     strconv.Itoa(c.Seq),
				"pos":     strconv.Itoa(s.nextPos + i),
			},
			Embedding: embeddings[i],
		}
	}
	s.nextPos += len(chunks)

	// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added chunks to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Query performs similarity search. Results are ordered by score descending
// with ties broken by insertion position, so identical stores answer
// identically.
func (s *ChromemStore) Query(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		pos, _ := strconv.Atoi(r.Metadata["pos"])
		out[i] = SearchResult{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Similarity,
			Source:  r.Metadata["source"],
			Heading: r.Metadata["heading"],
			Pos:     pos,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Pos < out[j].Pos
	})

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// Export writes the store contents to path atomically (temp file + rename).
func (s *ChromemStore) Export(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := s.db.ExportToFile(tmp, s.config.Compress, ""); err != nil {
		return fmt.Errorf("exporting store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Import replaces the store contents from a previously exported file.
func (s *ChromemStore) Import(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("importing store: %w", err)
	}
	s.db = db

	// Restore the position counter so later adds keep the global order.
	if collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc()); collection != nil {
		s.nextPos = collection.Count()
	} else {
		s.nextPos = 0
	}
	return nil
}

// Close releases resources. The in-memory DB needs no teardown.
func (s *ChromemStore) Close() error {
	return nil
}

var (
	_ Store      = (*ChromemStore)(nil)
	_ Persistent = (*ChromemStore)(nil)
)
