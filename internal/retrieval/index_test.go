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

func TestIndexConfig_ApplyDefaults(t *testing.T) {
	config := retrieval.IndexConfig{}
	config.ApplyDefaults()

	assert.Equal(t, 10, config.RetrieveK)
	assert.Equal(t, 1000, config.Chunker.ChunkSize)
	assert.Equal(t, 200, config.Chunker.ChunkOverlap)
}

func TestNewIndex_RequiresEmbedder(t *testing.T) {
	_, err := retrieval.NewIndex(retrieval.IndexConfig{}, nil, zap.NewNop())
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestIndex_Retrieve_BeforeBuild(t *testing.T) {
	idx := newTestIndex(t)

	assert.False(t, idx.Ready())
	assert.Equal(t, 0, idx.Count())

	_, err := idx.Retrieve(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, retrieval.ErrIndexUnavailable)
}

func TestIndex_BuildAndRetrieve(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, sampleDocs()))
	assert.True(t, idx.Ready())
	assert.Equal(t, 5, idx.Count())

	results, err := idx.Retrieve(ctx, "classifier routes the user intent", 3)
	require.NoError(t, err)
	require.Len(t, results, 3, "k=3 over five documents returns exactly three snippets")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score,
			"results must be ordered by score descending")
	}
	assert.Equal(t, "https://docs.example.com/patterns/router", results[0].Source)
}

func TestIndex_Retrieve_Deterministic(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, sampleDocs()))

	query := "escalation thresholds between tiers"
	first, err := idx.Retrieve(ctx, query, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := idx.Retrieve(ctx, query, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again, "repeated query must return identical results")
	}

	// Rebuilding from the same corpus yields the same answers.
	require.NoError(t, idx.Build(ctx, sampleDocs()))
	rebuilt, err := idx.Retrieve(ctx, query, 3)
	require.NoError(t, err)
	assert.Equal(t, first, rebuilt, "rebuild from identical corpus must not change results")
}

func TestIndex_Retrieve_DefaultK(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, sampleDocs()))

	// k<=0 falls back to the configured RetrieveK (3 in the fixture).
	results, err := idx.Retrieve(ctx, "graph state checkpoints", 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestIndex_Build_EmptyCorpus(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Build(context.Background(), nil)
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)
	assert.False(t, idx.Ready(), "failed build must not make the index available")
}

func TestIndex_Build_SwapsSnapshot(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, sampleDocs()))
	assert.Equal(t, 5, idx.Count())

	smaller := sampleDocs()[:2]
	require.NoError(t, idx.Build(ctx, smaller))
	assert.Equal(t, 2, idx.Count(), "rebuild replaces the previous snapshot")

	results, err := idx.Retrieve(ctx, "checkpoints persist graph state", 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "https://docs.example.com/guides/state", r.Source,
			"chunks from the replaced corpus must not appear")
	}
}

func TestIndex_RetrieveMany(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, sampleDocs()))

	queries := []string{
		"classifier routes the user intent",
		"supervisor delegates to specialist workers",
		"escalation thresholds between tiers",
	}

	results, err := idx.RetrieveMany(ctx, queries, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Result order matches query order regardless of completion order.
	assert.Equal(t, "https://docs.example.com/patterns/router", results[0][0].Source)
	assert.Equal(t, "https://docs.example.com/patterns/subagents", results[1][0].Source)
	assert.Equal(t, "https://docs.example.com/patterns/hybrid", results[2][0].Source)

	// Each sub-query independently matches a single Retrieve call.
	for i, q := range queries {
		single, err := idx.Retrieve(ctx, q, 2)
		require.NoError(t, err)
		assert.Equal(t, single, results[i])
	}
}

func TestIndex_RetrieveMany_Empty(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.RetrieveMany(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestIndex_SaveLoad_RoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, sampleDocs()))

	query := "typed schemas validate function calls"
	before, err := idx.Retrieve(ctx, query, 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, idx.Save(path))

	loaded := newTestIndex(t)
	require.NoError(t, loaded.Load(path))
	assert.True(t, loaded.Ready())
	assert.Equal(t, 5, loaded.Count())

	after, err := loaded.Retrieve(ctx, query, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after, "loaded index must answer queries identically")
}

func TestIndex_Save_NoPath(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Build(context.Background(), sampleDocs()))

	err := idx.Save("")
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestIndex_Save_BeforeBuild(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Save(filepath.Join(t.TempDir(), "index.gob"))
	assert.ErrorIs(t, err, retrieval.ErrIndexUnavailable)
}

func TestIndex_Load_MissingFile(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Load(filepath.Join(t.TempDir(), "absent.gob"))
	assert.ErrorIs(t, err, retrieval.ErrIndexUnavailable)
	assert.False(t, idx.Ready())
}

func TestIndex_Close(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Build(context.Background(), sampleDocs()))

	require.NoError(t, idx.Close())
	assert.False(t, idx.Ready())

	_, err := idx.Retrieve(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, retrieval.ErrIndexUnavailable)
}
