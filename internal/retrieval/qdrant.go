package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("foundryd.retrieval.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port (not the HTTP REST port).
	// Default: 6334.
	Port int

	// Collection is the collection name. Default: "foundryd_docs".
	Collection string

	// VectorSize is the embedding dimension. Must match the embedder.
	// Default: 384.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "foundryd_docs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore implements Store against a remote Qdrant instance over gRPC.
// Persistence lives server-side, so Export and Import are unsupported; use
// the embedded chromem store when file round-trips are required.
type QdrantStore struct {
	mu       sync.Mutex
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig

	nextPos int
}

// NewQdrantStore creates a store, connects, and ensures the collection
// exists with the configured vector size.
func NewQdrantStore(config QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{client: client, embedder: embedder, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	s.nextPos = s.Count()

	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", ErrConnectionFailed, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// Add embeds chunks in one batch and upserts them with ordered positions.
func (s *QdrantStore) Add(ctx context.Context, chunks []Chunk) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Add")
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

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]*qdrant.Value{
			"chunk_id": {Kind: &qdrant.Value_StringValue{StringValue: c.ID}},
			"content":  {Kind: &qdrant.Value_StringValue{StringValue: c.Content}},
			"source":   {Kind: &qdrant.Value_StringValue{StringValue: c.Source}},
			"heading":  {Kind: &qdrant.Value_StringValue{StringValue: c.Heading}},
			"seq":      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Seq)}},
			"pos":      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(s.nextPos + i)}},
		}
		// Point IDs must be UUIDs; derive them from the chunk ID so
		// rebuilding the same corpus overwrites rather than duplicates.
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.ID)).String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}
	s.nextPos += len(chunks)

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query performs similarity search with deterministic tie-breaking.
func (s *QdrantStore) Query(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, point := range results {
		r := SearchResult{Score: point.Score}
		if point.Payload != nil {
			r.ID = point.Payload["chunk_id"].GetStringValue()
			r.Content = point.Payload["content"].GetStringValue()
			r.Source = point.Payload["source"].GetStringValue()
			r.Heading = point.Payload["heading"].GetStringValue()
			r.Pos = int(point.Payload["pos"].GetIntegerValue())
		}
		out = append(out, r)
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
func (s *QdrantStore) Count() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0
	}
	return int(count)
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

var _ Store = (*QdrantStore)(nil)
