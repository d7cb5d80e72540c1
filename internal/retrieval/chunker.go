package retrieval

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking defaults. Sized so a chunk carries enough surrounding context to
// stand alone while staying well inside embedding model input limits.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkerConfig holds chunking parameters.
type ChunkerConfig struct {
	// ChunkSize is the target chunk length in characters. Default: 1000.
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks in characters.
	// Default: 200.
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChunkerConfig) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
}

// Validate validates the configuration.
func (c *ChunkerConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap cannot be negative", ErrInvalidConfig)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits corpus documents into overlapping chunks. Splitting is
// deterministic: the same documents in the same order always yield the same
// chunks with the same IDs.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	config   ChunkerConfig
}

// NewChunker creates a chunker with the given configuration.
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
		config: config,
	}, nil
}

// Split chunks documents in order. Chunk IDs are "<source>#<seq>" so the
// same corpus always produces the same IDs in the same order.
func (c *Chunker) Split(docs []Document) ([]Chunk, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	var chunks []Chunk
	for _, doc := range docs {
		if doc.Content == "" {
			continue
		}
		parts, err := c.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Source, err)
		}
		for seq, part := range parts {
			chunks = append(chunks, Chunk{
				ID:      fmt.Sprintf("%s#%04d", doc.Source, seq),
				Content: part,
				Source:  doc.Source,
				Heading: doc.Heading,
				Seq:     seq,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocuments
	}
	return chunks, nil
}
