// Package extraction derives generation constraints from free-form request
// text. A heuristic pattern table handles the common phrasings; an optional
// LLM provider refines harder requests and falls back to the heuristics
// whenever the model is unavailable or answers garbage.
package extraction

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

var (
	// ErrInvalidConfig indicates invalid extraction configuration.
	ErrInvalidConfig = errors.New("invalid extraction config")

	// ErrUnknownProvider indicates an unrecognized extraction provider.
	ErrUnknownProvider = errors.New("unknown extraction provider")
)

// Extractor derives constraints from request text. Hints are optional
// caller-supplied key/value pairs that take precedence over detected values.
type Extractor interface {
	Extract(ctx context.Context, text string, hints map[string]string) ([]generation.Constraint, error)
}

// Pattern maps a regex to the constraint it evidences. If the regex has a
// capture group, the first group becomes the constraint value; otherwise the
// whole match does.
type Pattern struct {
	Name     string                    `json:"name"`
	Regex    string                    `json:"regex"`
	Kind     generation.ConstraintKind `json:"kind"`
	Priority int                       `json:"priority"`
}

// Config holds configuration for constraint extraction.
type Config struct {
	// Provider selects the extractor: "heuristic" (default), "openai",
	// or "disabled".
	Provider string `json:"provider"`

	// Patterns overrides the default heuristic pattern table.
	Patterns []Pattern `json:"patterns,omitempty"`

	// Model, APIKey, BaseURL configure the LLM provider.
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `json:"timeout,omitempty"`
}

// DefaultConfig returns a default extraction configuration.
func DefaultConfig() Config {
	return Config{
		Provider: "heuristic",
		Patterns: DefaultPatterns(),
	}
}

// DefaultPatterns returns the default constraint detection patterns.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Tone cues
		{Name: "tone_adjective", Regex: `(?i)\b(formal|casual|technical|conversational|friendly|professional)\b(?:\s+(?:tone|style|voice|register))?`, Kind: generation.ConstraintTone, Priority: 3},
		// Length cues
		{Name: "length_concise", Regex: `(?i)\b(concise|brief|short|minimal)\b`, Kind: generation.ConstraintLength, Priority: 3},
		{Name: "length_detailed", Regex: `(?i)\b(detailed|comprehensive|thorough|in-depth|extensive)\b`, Kind: generation.ConstraintLength, Priority: 3},
		// Structure cues
		{Name: "structure_steps", Regex: `(?i)\b(step[- ]by[- ]step|numbered steps|staged)\b`, Kind: generation.ConstraintStructure, Priority: 3},
		{Name: "structure_sections", Regex: `(?i)\b(sectioned|well[- ]organized|modular)\b`, Kind: generation.ConstraintStructure, Priority: 2},
		// Runtime cues
		{Name: "runtime_python", Regex: `(?i)\b(python\s*3(?:\.\d+)?)\b`, Kind: generation.ConstraintRuntime, Priority: 4},
		{Name: "runtime_notebook", Regex: `(?i)\b(jupyter|notebook|colab)\b`, Kind: generation.ConstraintRuntime, Priority: 3},
		// Environment cues
		{Name: "env_api_key", Regex: `(?i)\b(openai|anthropic)\s+(?:api\s*key|credentials)\b`, Kind: generation.ConstraintEnvironment, Priority: 4},
		{Name: "env_local", Regex: `(?i)\b(offline|local[- ]only|air[- ]gapped)\b`, Kind: generation.ConstraintEnvironment, Priority: 3},
	}
}
