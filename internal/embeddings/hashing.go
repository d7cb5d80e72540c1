package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultHashingDimension is the vector size the hashing provider emits by
// default. Matches the bge-small family so stores need no special casing.
const DefaultHashingDimension = 384

// HashingProvider embeds text by feature-hashing word unigrams and bigrams
// into a fixed-size vector, L2-normalized. The same text always produces
// the same vector, so index builds and queries are fully reproducible.
//
// It is a lexical embedder: similarity reflects token overlap, not meaning.
// Good enough for deterministic tests and offline operation; swap in
// fastembed or TEI for semantic quality.
type HashingProvider struct {
	dimension int
}

// NewHashingProvider creates a hashing provider with the given dimension.
// A dimension of 0 selects DefaultHashingDimension.
func NewHashingProvider(dimension int) (*HashingProvider, error) {
	if dimension == 0 {
		dimension = DefaultHashingDimension
	}
	if dimension < 8 {
		return nil, fmt.Errorf("%w: dimension %d too small", ErrInvalidConfig, dimension)
	}
	return &HashingProvider{dimension: dimension}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HashingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *HashingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.embed(text), nil
}

// Dimension returns the configured vector size.
func (p *HashingProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op: the provider holds no resources.
func (p *HashingProvider) Close() error {
	return nil
}

// embed hashes tokens into the vector. Each feature contributes +1 or -1 to
// one bucket (sign from the hash) so collisions tend to cancel rather than
// pile up.
func (p *HashingProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := tokenize(text)

	addFeature := func(feature string) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	for i, tok := range tokens {
		addFeature(tok)
		if i+1 < len(tokens) {
			addFeature(tok + " " + tokens[i+1])
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec
}

// tokenize lowercases and splits on any non-alphanumeric rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isDigit := r >= '0' && r <= '9'
		isLower := r >= 'a' && r <= 'z'
		return !isDigit && !isLower
	})
}
