package retrieval_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

func TestChunkerConfig_ApplyDefaults(t *testing.T) {
	config := retrieval.ChunkerConfig{}
	config.ApplyDefaults()

	assert.Equal(t, 1000, config.ChunkSize)
	assert.Equal(t, 200, config.ChunkOverlap)
}

func TestChunkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    retrieval.ChunkerConfig
		wantError bool
	}{
		{
			name:      "valid config",
			config:    retrieval.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
			wantError: false,
		},
		{
			name:      "zero chunk size",
			config:    retrieval.ChunkerConfig{ChunkSize: 0, ChunkOverlap: 200},
			wantError: true,
		},
		{
			name:      "negative overlap",
			config:    retrieval.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: -1},
			wantError: true,
		},
		{
			name:      "overlap equals size",
			config:    retrieval.ChunkerConfig{ChunkSize: 200, ChunkOverlap: 200},
			wantError: true,
		},
		{
			name:      "overlap exceeds size",
			config:    retrieval.ChunkerConfig{ChunkSize: 100, ChunkOverlap: 200},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunker_Split_ShortDocument(t *testing.T) {
	chunker, err := retrieval.NewChunker(retrieval.ChunkerConfig{})
	require.NoError(t, err)

	docs := []retrieval.Document{
		{Source: "https://example.com/a", Heading: "A", Content: "short document body"},
	}

	chunks, err := chunker.Split(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "https://example.com/a#0000", chunks[0].ID)
	assert.Equal(t, "short document body", chunks[0].Content)
	assert.Equal(t, "https://example.com/a", chunks[0].Source)
	assert.Equal(t, "A", chunks[0].Heading)
	assert.Equal(t, 0, chunks[0].Seq)
}

func TestChunker_Split_LongDocument(t *testing.T) {
	chunker, err := retrieval.NewChunker(retrieval.ChunkerConfig{})
	require.NoError(t, err)

	// Roughly 5000 characters of short sentences.
	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about agent workflow design. ", i)
	}
	text := b.String()

	docs := []retrieval.Document{{Source: "https://example.com/long", Content: text}}

	chunks, err := chunker.Split(docs)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "long document should produce multiple chunks")

	total := 0
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 1000,
			"chunk %d exceeds configured size", i)
		assert.Equal(t, i, c.Seq)
		assert.Equal(t, fmt.Sprintf("https://example.com/long#%04d", i), c.ID)
		total += utf8.RuneCountInString(c.Content)
	}

	// Overlap duplicates content across chunk boundaries, so the chunks
	// together are longer than the source text.
	assert.Greater(t, total, len(text)-len(chunks)*2,
		"chunks should cover the document")
}

func TestChunker_Split_Deterministic(t *testing.T) {
	chunker, err := retrieval.NewChunker(retrieval.ChunkerConfig{})
	require.NoError(t, err)

	docs := sampleDocs()

	first, err := chunker.Split(docs)
	require.NoError(t, err)
	second, err := chunker.Split(docs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunker_Split_SkipsEmptyDocuments(t *testing.T) {
	chunker, err := retrieval.NewChunker(retrieval.ChunkerConfig{})
	require.NoError(t, err)

	docs := []retrieval.Document{
		{Source: "https://example.com/empty", Content: "   \n\t  "},
		{Source: "https://example.com/real", Content: "actual content here"},
	}

	chunks, err := chunker.Split(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "https://example.com/real", chunks[0].Source)
}

func TestChunker_Split_NoDocuments(t *testing.T) {
	chunker, err := retrieval.NewChunker(retrieval.ChunkerConfig{})
	require.NoError(t, err)

	_, err = chunker.Split(nil)
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)

	_, err = chunker.Split([]retrieval.Document{{Source: "x", Content: " "}})
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)
}
