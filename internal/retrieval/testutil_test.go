package retrieval_test

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

// hashEmbedder buckets tokens into a fixed-size vector. Texts sharing
// words land in shared buckets, so cosine similarity tracks word overlap.
// Deterministic and normalized, which is what chromem expects.
type hashEmbedder struct {
	dim int
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: 128}
}

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *hashEmbedder) makeEmbedding(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		norm := float32(1.0 / math.Sqrt(sumSq))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

// sampleDocs returns a small corpus of agent-pattern documentation with
// distinct vocabulary per document, so relevance assertions are stable.
func sampleDocs() []retrieval.Document {
	return []retrieval.Document{
		{
			Source:  "https://docs.example.com/patterns/router",
			Heading: "Router pattern",
			Content: "The router pattern dispatches each incoming request to exactly one " +
				"handler. A classifier node inspects the user intent and routes the " +
				"conversation to the matching branch. Routing keeps latency low because " +
				"only one downstream path executes per request.",
		},
		{
			Source:  "https://docs.example.com/patterns/subagents",
			Heading: "Subagent delegation",
			Content: "Subagent architectures delegate work to specialist workers. A " +
				"supervisor decomposes the task, assigns each piece to a specialist, " +
				"and aggregates the partial answers. Delegation trades latency for " +
				"coverage when tasks span several domains.",
		},
		{
			Source:  "https://docs.example.com/patterns/hybrid",
			Heading: "Hybrid orchestration",
			Content: "Hybrid orchestration combines routing with delegation. Simple " +
				"requests take the fast routed path while complex requests escalate " +
				"to a supervisor tier. Escalation thresholds decide which tier handles " +
				"a given request.",
		},
		{
			Source:  "https://docs.example.com/guides/tools",
			Heading: "Tool binding",
			Content: "Tools are bound to the model with typed schemas. Each tool " +
				"declares its arguments, and the binding layer validates function " +
				"calls before execution. Schema validation catches malformed calls " +
				"early.",
		},
		{
			Source:  "https://docs.example.com/guides/state",
			Heading: "Graph state",
			Content: "Graph state flows through channels with reducer functions. " +
				"Checkpoints persist the state between steps so a crashed run can " +
				"resume. Reducers decide whether updates append or overwrite.",
		},
	}
}

func newTestStoreConfig() retrieval.StoreConfig {
	return retrieval.StoreConfig{
		Provider: "chromem",
		Chromem: retrieval.ChromemConfig{
			Collection: "test_docs",
			VectorSize: 128,
		},
	}
}

func newTestIndex(t *testing.T) *retrieval.Index {
	t.Helper()

	config := retrieval.IndexConfig{
		RetrieveK: 3,
		Store:     newTestStoreConfig(),
	}
	idx, err := retrieval.NewIndex(config, newHashEmbedder(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}
