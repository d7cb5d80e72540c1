package extraction

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// fakeModel returns a canned completion or error.
type fakeModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestLLMExtractor(t *testing.T, model llms.Model) *LLMExtractor {
	t.Helper()

	ex, err := NewLLMExtractor(model, NewHeuristicExtractor(nil), zap.NewNop())
	require.NoError(t, err)
	ex.maxRetries = 0 // No backoff waits in tests
	return ex
}

func TestLLMExtractor_Extract(t *testing.T) {
	model := &fakeModel{response: "```json\n" +
		`[{"kind":"goal","value":"triage agent","priority":5},` +
		`{"kind":"tone","value":"formal","priority":3}]` + "\n```"}
	ex := newTestLLMExtractor(t, model)

	constraints, err := ex.Extract(context.Background(), "Build a triage agent with a formal tone.", nil)
	require.NoError(t, err)
	require.Len(t, constraints, 2)

	assert.Equal(t, generation.ConstraintGoal, constraints[0].Kind)
	assert.Equal(t, "triage agent", constraints[0].Value)
	assert.Equal(t, generation.ConstraintTone, constraints[1].Kind)
	assert.Equal(t, 1, model.calls)
}

func TestLLMExtractor_Extract_AddsMissingGoal(t *testing.T) {
	model := &fakeModel{response: `[{"kind":"tone","value":"casual","priority":2}]`}
	ex := newTestLLMExtractor(t, model)

	constraints, err := ex.Extract(context.Background(), "Something casual.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, constraints)

	assert.Equal(t, generation.ConstraintGoal, constraints[0].Kind)
	assert.Equal(t, "Something casual.", constraints[0].Value)
}

func TestLLMExtractor_Extract_FallsBackOnError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("connection refused")}
	ex := newTestLLMExtractor(t, model)

	constraints, err := ex.Extract(context.Background(), "Use a formal tone.", nil)
	require.NoError(t, err, "model failure must degrade to heuristics, not fail")

	assert.Equal(t, generation.ConstraintGoal, constraints[0].Kind)
	found := false
	for _, c := range constraints {
		if c.Kind == generation.ConstraintTone && c.Value == "formal" {
			found = true
		}
	}
	assert.True(t, found, "heuristic result expected after fallback")
}

func TestLLMExtractor_Extract_FallsBackOnGarbage(t *testing.T) {
	model := &fakeModel{response: "I cannot help with that."}
	ex := newTestLLMExtractor(t, model)

	constraints, err := ex.Extract(context.Background(), "Keep it concise.", nil)
	require.NoError(t, err)
	assert.Equal(t, generation.ConstraintGoal, constraints[0].Kind)
}

func TestLLMExtractor_Extract_AppliesHints(t *testing.T) {
	model := &fakeModel{response: `[{"kind":"goal","value":"agent","priority":5},{"kind":"tone","value":"formal","priority":3}]`}
	ex := newTestLLMExtractor(t, model)

	constraints, err := ex.Extract(context.Background(), "whatever", map[string]string{"tone": "casual"})
	require.NoError(t, err)

	for _, c := range constraints {
		if c.Kind == generation.ConstraintTone {
			assert.Equal(t, "casual", c.Value)
			assert.Equal(t, 5, c.Priority)
		}
	}
}

func TestParseConstraints(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLen   int
		wantError bool
	}{
		{
			name:    "plain array",
			input:   `[{"kind":"goal","value":"x","priority":5}]`,
			wantLen: 1,
		},
		{
			name:    "fenced array",
			input:   "```json\n[{\"kind\":\"goal\",\"value\":\"x\",\"priority\":5}]\n```",
			wantLen: 1,
		},
		{
			name:    "unknown kind skipped",
			input:   `[{"kind":"mood","value":"x","priority":3},{"kind":"tone","value":"y","priority":3}]`,
			wantLen: 1,
		},
		{
			name:    "out of range priority defaulted",
			input:   `[{"kind":"tone","value":"x","priority":99}]`,
			wantLen: 1,
		},
		{
			name:      "empty array",
			input:     `[]`,
			wantError: true,
		},
		{
			name:      "only unusable entries",
			input:     `[{"kind":"mood","value":"x"},{"kind":"tone","value":""}]`,
			wantError: true,
		},
		{
			name:      "not json",
			input:     "sure, here you go",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraints, err := parseConstraints(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, constraints, tt.wantLen)
			for _, c := range constraints {
				assert.True(t, c.Kind.Valid())
				assert.GreaterOrEqual(t, c.Priority, 1)
				assert.LessOrEqual(t, c.Priority, 5)
			}
		})
	}
}

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fence", input: `[1]`, want: `[1]`},
		{name: "json fence", input: "```json\n[1]\n```", want: `[1]`},
		{name: "bare fence", input: "```\n[1]\n```", want: `[1]`},
		{name: "surrounding whitespace", input: "  ```json\n[1]\n```  ", want: `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripJSONFences(tt.input))
		})
	}
}
