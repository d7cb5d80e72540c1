package generator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/artifact"
	"github.com/fyrsmithlabs/foundryd/internal/embeddings"
	"github.com/fyrsmithlabs/foundryd/internal/extraction"
	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/generator"
	"github.com/fyrsmithlabs/foundryd/internal/pipeline"
	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

func corpusDocs() []retrieval.Document {
	return []retrieval.Document{
		{Content: "The router pattern classifies each request and dispatches it to exactly one specialist branch using conditional edges.", Source: "docs/router.md", Heading: "Routing"},
		{Content: "Subagent supervisors fan work out to parallel workers and join their results before responding.", Source: "docs/subagents.md", Heading: "Subagents"},
		{Content: "StateGraph wires nodes and edges; set_entry_point selects the first node and END terminates the graph.", Source: "docs/stategraph.md", Heading: "StateGraph"},
		{Content: "Checkpointers persist workflow state between invocations, keyed by thread id.", Source: "docs/checkpoints.md", Heading: "Checkpoints"},
		{Content: "Tools are plain functions registered with the workflow; structured output keeps routing decisions parseable.", Source: "docs/tools.md", Heading: "Tools"},
	}
}

// newService builds a fully wired service over an in-memory index and
// returns it with its package output directory.
func newService(t *testing.T, build bool) (*generator.Service, string) {
	t.Helper()

	embedder, err := embeddings.NewHashingProvider(64)
	require.NoError(t, err)

	index, err := retrieval.NewIndex(retrieval.IndexConfig{RetrieveK: 3}, embedder, zap.NewNop())
	require.NoError(t, err)
	if build {
		require.NoError(t, index.Build(context.Background(), corpusDocs()))
	}

	extractor, err := extraction.NewExtractor(extraction.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	outputDir := t.TempDir()
	svc, err := generator.NewService(generator.Config{
		OutputDir:  outputDir,
		CorpusPath: filepath.Join(t.TempDir(), "documents.json"),
		RetrieveK:  3,
		Pipeline:   pipeline.Config{MaxAttempts: 3},
	}, extractor, index, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, outputDir
}

func TestGenerateEndToEnd(t *testing.T) {
	svc, outputDir := newService(t, true)

	req := generation.NewRequest("Build a step-by-step Jupyter notebook that routes billing and support questions to specialist agents")
	state, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, state.GenerationComplete)
	assert.Empty(t, state.ErrorMessage)
	assert.True(t, state.Architecture.Pattern.Valid())
	assert.NotEmpty(t, state.Constraints)
	assert.NotEmpty(t, state.Snippets)
	assert.NotEmpty(t, state.Units)

	require.NotNil(t, state.Manifest)
	manifest := *state.Manifest
	assert.True(t, manifest.GenerationComplete)
	assert.Equal(t, req.ID, manifest.RunID)
	assert.NotEmpty(t, manifest.Reports)
	assert.True(t, manifest.Summary.AllPassed, "composed artifacts validate cleanly: %+v", manifest.Reports)

	// The package directory holds a parseable notebook and the manifest.
	for _, name := range []string{artifact.NotebookFileName, artifact.ManifestFileName} {
		assert.Contains(t, manifest.Files, name)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, state.Request.ID, artifact.NotebookFileName))
	require.NoError(t, err)
	nb, err := artifact.ParseNotebook(data)
	require.NoError(t, err)
	assert.Len(t, nb.Units(), len(state.Units))
}

func TestGenerateHintOverridesArchitecture(t *testing.T) {
	svc, _ := newService(t, true)

	req := generation.NewRequest("Build a research assistant notebook")
	req.Hints = map[string]string{"architecture": string(generation.SubagentsPattern)}

	state, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, generation.SubagentsPattern, state.Architecture.Pattern)
	assert.Contains(t, state.Architecture.Justification, "hint")
}

func TestGenerateRejectsInvalidHint(t *testing.T) {
	svc, _ := newService(t, true)

	req := generation.NewRequest("Build a research assistant notebook")
	req.Hints = map[string]string{"architecture": "monolith"}

	state, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.False(t, state.GenerationComplete)
	assert.Contains(t, state.ErrorMessage, "closed pattern set")
}

func TestGenerateWithoutIndexFails(t *testing.T) {
	svc, _ := newService(t, false)

	state, err := svc.Generate(context.Background(), generation.NewRequest("Build a triage notebook"))
	require.ErrorIs(t, err, retrieval.ErrIndexUnavailable)

	assert.False(t, state.GenerationComplete)
	assert.Contains(t, state.ErrorMessage, "retrieval unavailable")

	// A failed run still yields a faithful manifest in memory.
	manifest := svc.Manifest(state)
	assert.False(t, manifest.GenerationComplete)
	assert.NotEmpty(t, manifest.ErrorMessage)
}

func TestGenerateEmptyRequest(t *testing.T) {
	svc, _ := newService(t, true)

	state, err := svc.Generate(context.Background(), generation.Request{Text: "  "})
	require.ErrorIs(t, err, pipeline.ErrEmptyRequest)
	assert.False(t, state.GenerationComplete)
}

func TestRebuildIndexFromCache(t *testing.T) {
	embedder, err := embeddings.NewHashingProvider(64)
	require.NoError(t, err)
	index, err := retrieval.NewIndex(retrieval.IndexConfig{RetrieveK: 3}, embedder, zap.NewNop())
	require.NoError(t, err)

	corpusPath := filepath.Join(t.TempDir(), "documents.json")
	require.NoError(t, retrieval.NewCache(corpusPath).Save(corpusDocs()))

	extractor, err := extraction.NewExtractor(extraction.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	svc, err := generator.NewService(generator.Config{
		OutputDir:  t.TempDir(),
		CorpusPath: corpusPath,
	}, extractor, index, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.False(t, svc.Status().Ready)
	require.NoError(t, svc.RebuildIndex(context.Background()))

	status := svc.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, len(corpusDocs()), status.Chunks)
}

func TestRebuildIndexWithoutCorpus(t *testing.T) {
	svc, _ := newService(t, false)
	err := svc.RebuildIndex(context.Background())
	require.ErrorIs(t, err, generator.ErrEmptyCorpus)
}

func TestGenerateProgressEvents(t *testing.T) {
	svc, _ := newService(t, true)

	var stages []pipeline.Stage
	svc.OnProgress(func(p pipeline.StageProgress) {
		if p.Status == pipeline.StatusCompleted {
			stages = append(stages, p.Stage)
		}
	})

	_, err := svc.Generate(context.Background(), generation.NewRequest("Build a triage notebook"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageIntake, stages[0])
	assert.Equal(t, pipeline.StagePackaging, stages[len(stages)-1])
}
