package retrieval_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

func newTestChromemStore(t *testing.T) *retrieval.ChromemStore {
	t.Helper()

	config := retrieval.ChromemConfig{
		Collection: "test_docs",
		VectorSize: 128,
	}
	store, err := retrieval.NewChromemStore(config, newHashEmbedder(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunks() []retrieval.Chunk {
	var chunks []retrieval.Chunk
	for _, doc := range sampleDocs() {
		chunks = append(chunks, retrieval.Chunk{
			ID:      doc.Source + "#0000",
			Content: doc.Content,
			Source:  doc.Source,
			Heading: doc.Heading,
			Seq:     0,
		})
	}
	return chunks
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := retrieval.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "foundryd_docs", config.Collection)
	assert.Equal(t, 384, config.VectorSize)
}

func TestChromemConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    retrieval.ChromemConfig
		wantError bool
	}{
		{
			name:      "valid config",
			config:    retrieval.ChromemConfig{Collection: "docs", VectorSize: 384},
			wantError: false,
		},
		{
			name:      "zero vector size",
			config:    retrieval.ChromemConfig{Collection: "docs", VectorSize: 0},
			wantError: true,
		},
		{
			name:      "missing collection",
			config:    retrieval.ChromemConfig{VectorSize: 384},
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

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := retrieval.NewChromemStore(retrieval.ChromemConfig{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestChromemStore_AddAndCount(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	assert.Equal(t, 0, store.Count())

	require.NoError(t, store.Add(ctx, testChunks()))
	assert.Equal(t, 5, store.Count())
}

func TestChromemStore_Add_Empty(t *testing.T) {
	store := newTestChromemStore(t)

	err := store.Add(context.Background(), nil)
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)
}

func TestChromemStore_Query(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, testChunks()))

	results, err := store.Query(ctx, "classifier routes the user intent", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Scores descend.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	// The router document shares the most vocabulary with the query.
	assert.Equal(t, "https://docs.example.com/patterns/router", results[0].Source)
	assert.Equal(t, "Router pattern", results[0].Heading)
	assert.NotEmpty(t, results[0].Content)
}

func TestChromemStore_Query_ClampsK(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, testChunks()))

	results, err := store.Query(ctx, "delegation", 50)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestChromemStore_Query_EmptyStore(t *testing.T) {
	store := newTestChromemStore(t)

	results, err := store.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Query_InvalidArguments(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "query", 0)
	assert.Error(t, err)

	_, err = store.Query(ctx, "", 3)
	assert.Error(t, err)
}

func TestChromemStore_ExportImport_RoundTrip(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, testChunks()))

	query := "supervisor delegates work to specialist workers"
	before, err := store.Query(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, before, 3)

	path := filepath.Join(t.TempDir(), "nested", "index.gob")
	require.NoError(t, store.Export(path))
	assert.FileExists(t, path)

	restored := newTestChromemStore(t)
	require.NoError(t, restored.Import(path))
	assert.Equal(t, 5, restored.Count())

	after, err := restored.Query(ctx, query, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after, "restored store should answer queries identically")
}

func TestChromemStore_Import_MissingFile(t *testing.T) {
	store := newTestChromemStore(t)

	err := store.Import(filepath.Join(t.TempDir(), "absent.gob"))
	assert.Error(t, err)
}
