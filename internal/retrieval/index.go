package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var indexTracer = otel.Tracer("foundryd.retrieval.index")

// IndexConfig holds configuration for the retrieval index.
type IndexConfig struct {
	// RetrieveK is the default number of results per query. Default: 10.
	RetrieveK int

	Chunker ChunkerConfig
	Store   StoreConfig

	// PersistPath is the default location for Save and Load. Optional.
	PersistPath string
}

// ApplyDefaults sets default values for unset fields.
func (c *IndexConfig) ApplyDefaults() {
	if c.RetrieveK == 0 {
		c.RetrieveK = 10
	}
	c.Chunker.ApplyDefaults()
}

// Validate validates the configuration.
func (c *IndexConfig) Validate() error {
	if c.RetrieveK <= 0 {
		return fmt.Errorf("%w: retrieve k must be positive", ErrInvalidConfig)
	}
	return c.Chunker.Validate()
}

// Index is the retrieval front door. It owns a swappable store snapshot:
// builds assemble a fresh store offline and swap it in atomically, so
// readers always query a complete, immutable snapshot and a rebuild never
// runs against live readers.
type Index struct {
	mu    sync.RWMutex
	store Store

	newStore func() (Store, error)
	chunker  *Chunker
	config   IndexConfig
	logger   *zap.Logger
	metrics  *indexMetrics
}

// NewIndex creates an index. The index is unavailable until Build or Load
// succeeds; queries before that return ErrIndexUnavailable.
func NewIndex(config IndexConfig, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	chunker, err := NewChunker(config.Chunker)
	if err != nil {
		return nil, err
	}

	return &Index{
		newStore: func() (Store, error) {
			return NewStore(config.Store, embedder, logger)
		},
		chunker: chunker,
		config:  config,
		logger:  logger,
		metrics: newIndexMetrics(logger),
	}, nil
}

// Ready reports whether the index can answer queries.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store != nil
}

// Count returns the number of indexed chunks, 0 when unavailable.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.store == nil {
		return 0
	}
	return idx.store.Count()
}

// Build chunks and embeds documents into a fresh store, then swaps it in.
// Readers of the previous snapshot are unaffected; the same documents and
// embedder always produce an identical index.
func (idx *Index) Build(ctx context.Context, docs []Document) error {
	ctx, span := indexTracer.Start(ctx, "Index.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))
	start := time.Now()

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	chunks, err := idx.chunker.Split(docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("chunking corpus: %w", err)
	}
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	fresh, err := idx.newStore()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("creating store: %w", err)
	}
	if err := fresh.Add(ctx, chunks); err != nil {
		_ = fresh.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("indexing chunks: %w", err)
	}

	idx.swap(fresh)
	idx.metrics.recordBuild(ctx, len(docs), len(chunks), time.Since(start))
	span.SetStatus(codes.Ok, "success")

	idx.logger.Info("retrieval index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// swap installs a new snapshot and closes the old one.
func (idx *Index) swap(fresh Store) {
	idx.mu.Lock()
	old := idx.store
	idx.store = fresh
	idx.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// snapshot returns the current store or ErrIndexUnavailable.
func (idx *Index) snapshot() (Store, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.store == nil {
		return nil, ErrIndexUnavailable
	}
	return idx.store, nil
}

// Retrieve returns up to k snippets for the query, ordered by score
// descending with deterministic tie-breaking.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := indexTracer.Start(ctx, "Index.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))
	start := time.Now()

	if k <= 0 {
		k = idx.config.RetrieveK
	}

	store, err := idx.snapshot()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results, err := store.Query(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	idx.metrics.recordQuery(ctx, len(results), time.Since(start), nil)
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// RetrieveMany runs independent queries concurrently against the same
// snapshot. Results arrive in query order; the call fails if any query
// fails.
func (idx *Index) RetrieveMany(ctx context.Context, queries []string, k int) ([][]SearchResult, error) {
	ctx, span := indexTracer.Start(ctx, "Index.RetrieveMany")
	defer span.End()
	span.SetAttributes(attribute.Int("query_count", len(queries)))

	if len(queries) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = idx.config.RetrieveK
	}

	store, err := idx.snapshot()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([][]SearchResult, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results[i], errs[i] = store.Query(ctx, q, k)
		}(i, q)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Save exports the current snapshot to path (or the configured persist
// path when path is empty). Only persistent backends support this.
func (idx *Index) Save(path string) error {
	if path == "" {
		path = idx.config.PersistPath
	}
	if path == "" {
		return fmt.Errorf("%w: no persist path configured", ErrInvalidConfig)
	}

	store, err := idx.snapshot()
	if err != nil {
		return err
	}
	persistent, ok := store.(Persistent)
	if !ok {
		return ErrPersistenceUnsupported
	}
	if err := persistent.Export(path); err != nil {
		return err
	}
	idx.logger.Info("retrieval index saved", zap.String("path", path))
	return nil
}

// Load imports a previously saved index into a fresh store and swaps it
// in. A loaded index answers queries identically to the one that saved it.
func (idx *Index) Load(path string) error {
	if path == "" {
		path = idx.config.PersistPath
	}
	if path == "" {
		return fmt.Errorf("%w: no persist path configured", ErrInvalidConfig)
	}

	fresh, err := idx.newStore()
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	persistent, ok := fresh.(Persistent)
	if !ok {
		_ = fresh.Close()
		return ErrPersistenceUnsupported
	}
	if err := persistent.Import(path); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	idx.swap(fresh)
	idx.logger.Info("retrieval index loaded",
		zap.String("path", path),
		zap.Int("chunks", fresh.Count()),
	)
	return nil
}

// Close releases the current snapshot.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.store == nil {
		return nil
	}
	err := idx.store.Close()
	idx.store = nil
	return err
}
