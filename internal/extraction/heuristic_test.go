package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

func TestHeuristicExtractor_GoalConstraint(t *testing.T) {
	ex := NewHeuristicExtractor(nil)

	constraints, err := ex.Extract(context.Background(), "Build a support triage agent. It should answer billing questions.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, constraints)

	goal := constraints[0]
	assert.Equal(t, generation.ConstraintGoal, goal.Kind)
	assert.Equal(t, "Build a support triage agent.", goal.Value)
	assert.Equal(t, 5, goal.Priority)
}

func TestHeuristicExtractor_GoalTruncation(t *testing.T) {
	ex := NewHeuristicExtractor(nil)

	long := strings.Repeat("word ", 100) // no sentence end, ~500 chars
	constraints, err := ex.Extract(context.Background(), long, nil)
	require.NoError(t, err)

	goal := constraints[0]
	assert.Equal(t, generation.ConstraintGoal, goal.Kind)
	assert.True(t, strings.HasSuffix(goal.Value, "..."))
	assert.LessOrEqual(t, len([]rune(goal.Value)), goalHeadLimit+3)
}

func TestHeuristicExtractor_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantKind  generation.ConstraintKind
		wantValue string
	}{
		{
			name:      "tone",
			text:      "Use a formal tone throughout.",
			wantKind:  generation.ConstraintTone,
			wantValue: "formal",
		},
		{
			name:      "length concise",
			text:      "Keep explanations concise.",
			wantKind:  generation.ConstraintLength,
			wantValue: "concise",
		},
		{
			name:      "length detailed",
			text:      "I want a comprehensive walkthrough.",
			wantKind:  generation.ConstraintLength,
			wantValue: "comprehensive",
		},
		{
			name:      "structure",
			text:      "Explain the build step by step.",
			wantKind:  generation.ConstraintStructure,
			wantValue: "step by step",
		},
		{
			name:      "runtime version",
			text:      "Target Python 3.11 please.",
			wantKind:  generation.ConstraintRuntime,
			wantValue: "python 3.11",
		},
		{
			name:      "runtime notebook",
			text:      "Deliver it as a Jupyter artifact.",
			wantKind:  generation.ConstraintRuntime,
			wantValue: "jupyter",
		},
		{
			name:      "environment",
			text:      "Assume an OpenAI API key is configured.",
			wantKind:  generation.ConstraintEnvironment,
			wantValue: "openai",
		},
	}

	ex := NewHeuristicExtractor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraints, err := ex.Extract(context.Background(), tt.text, nil)
			require.NoError(t, err)

			found := false
			for _, c := range constraints {
				if c.Kind == tt.wantKind && c.Value == tt.wantValue {
					found = true
					break
				}
			}
			assert.True(t, found, "expected %s=%q in %+v", tt.wantKind, tt.wantValue, constraints)
		})
	}
}

func TestHeuristicExtractor_Deterministic(t *testing.T) {
	ex := NewHeuristicExtractor(nil)
	text := "Build a formal, concise router agent in a Jupyter notebook targeting Python 3.12."

	first, err := ex.Extract(context.Background(), text, nil)
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), text, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHeuristicExtractor_DedupesAcrossPatterns(t *testing.T) {
	patterns := []Pattern{
		{Name: "a", Regex: `(?i)\b(formal)\b`, Kind: generation.ConstraintTone, Priority: 3},
		{Name: "b", Regex: `(?i)(formal) tone`, Kind: generation.ConstraintTone, Priority: 2},
	}
	ex := NewHeuristicExtractor(patterns)

	constraints, err := ex.Extract(context.Background(), "formal tone please", nil)
	require.NoError(t, err)

	count := 0
	for _, c := range constraints {
		if c.Kind == generation.ConstraintTone {
			count++
		}
	}
	assert.Equal(t, 1, count, "same kind and value must appear once")
}

func TestHeuristicExtractor_SkipsInvalidPatterns(t *testing.T) {
	patterns := []Pattern{
		{Name: "broken", Regex: `([`, Kind: generation.ConstraintTone, Priority: 3},
		{Name: "ok", Regex: `(?i)\b(casual)\b`, Kind: generation.ConstraintTone, Priority: 3},
	}
	ex := NewHeuristicExtractor(patterns)
	require.Len(t, ex.patterns, 1)

	constraints, err := ex.Extract(context.Background(), "casual wording", nil)
	require.NoError(t, err)
	assert.Len(t, constraints, 2) // goal + tone
}

func TestHeuristicExtractor_Hints(t *testing.T) {
	ex := NewHeuristicExtractor(nil)

	hints := map[string]string{
		"tone":        "Playful",
		"environment": "local-only",
		"unknown":     "ignored",
	}
	constraints, err := ex.Extract(context.Background(), "Use a formal tone.", hints)
	require.NoError(t, err)

	var tone, env *generation.Constraint
	for i := range constraints {
		switch constraints[i].Kind {
		case generation.ConstraintTone:
			tone = &constraints[i]
		case generation.ConstraintEnvironment:
			env = &constraints[i]
		}
	}

	require.NotNil(t, tone)
	assert.Equal(t, "playful", tone.Value, "hint overrides the detected tone")
	assert.Equal(t, 5, tone.Priority)

	require.NotNil(t, env)
	assert.Equal(t, "local-only", env.Value, "hint adds a missing kind")
}

func TestHeuristicExtractor_CancelledContext(t *testing.T) {
	ex := NewHeuristicExtractor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Extract(ctx, "anything", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHead(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "short", text: "build an agent", want: "build an agent"},
		{name: "first sentence", text: "First thing. Second thing.", want: "First thing."},
		{name: "whitespace collapsed", text: "a\n\tb   c", want: "a b c"},
		{name: "trailing period kept", text: "Only sentence.", want: "Only sentence."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, head(tt.text, goalHeadLimit))
		})
	}
}
