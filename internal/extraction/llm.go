package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	// Conservative defaults to stay well under API quotas.
	defaultRateLimit = 50.0 / 60.0 // ~0.83 requests per second
	defaultBurst     = 5
)

const constraintPrompt = `Extract generation constraints from this request for an agent workflow notebook.

Request:
%s

Respond with a JSON array only. Each element: {"kind": one of "goal"|"tone"|"length"|"structure"|"runtime"|"environment", "value": short string, "priority": 1-5}.
Include exactly one "goal" element summarizing what to build.`

// llmConstraint is the wire shape the model is asked to produce.
type llmConstraint struct {
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Priority int    `json:"priority"`
}

// LLMExtractor refines constraint extraction with a chat model. Any failure
// along the way degrades to the heuristic result, so extraction never blocks
// a run on a flaky model endpoint.
type LLMExtractor struct {
	model      llms.Model
	fallback   *HeuristicExtractor
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// NewLLMExtractor creates an extractor around an existing model client.
func NewLLMExtractor(model llms.Model, fallback *HeuristicExtractor, logger *zap.Logger) (*LLMExtractor, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if fallback == nil {
		fallback = NewHeuristicExtractor(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LLMExtractor{
		model:      model,
		fallback:   fallback,
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}, nil
}

// newOpenAIExtractor builds an LLMExtractor over the OpenAI-compatible API.
func newOpenAIExtractor(cfg Config, logger *zap.Logger) (*LLMExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key required", ErrInvalidConfig)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return NewLLMExtractor(client, NewHeuristicExtractor(cfg.Patterns), logger)
}

// Extract asks the model for a constraint list and falls back to heuristics
// on any error or unusable answer.
func (l *LLMExtractor) Extract(ctx context.Context, text string, hints map[string]string) ([]generation.Constraint, error) {
	completion, err := l.complete(ctx, fmt.Sprintf(constraintPrompt, text))
	if err != nil {
		l.logger.Warn("llm extraction failed, using heuristics", zap.Error(err))
		return l.fallback.Extract(ctx, text, hints)
	}

	constraints, err := parseConstraints(completion)
	if err != nil {
		l.logger.Warn("llm returned unparseable constraints, using heuristics", zap.Error(err))
		return l.fallback.Extract(ctx, text, hints)
	}

	// The run needs a goal even when the model forgot one.
	if !hasGoal(constraints) {
		constraints = append([]generation.Constraint{goalConstraint(text)}, constraints...)
	}

	return applyHints(constraints, hints), nil
}

// complete calls the model with rate limiting and bounded retries.
func (l *LLMExtractor) complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		completion, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt,
			llms.WithTemperature(0.2),
			llms.WithMaxTokens(1024),
		)
		if err == nil {
			return completion, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseConstraints decodes the model answer, tolerating markdown fences.
func parseConstraints(completion string) ([]generation.Constraint, error) {
	payload := stripJSONFences(completion)

	var raw []llmConstraint
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("parsing constraint list: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty constraint list")
	}

	var constraints []generation.Constraint
	for _, c := range raw {
		kind := generation.ConstraintKind(strings.ToLower(strings.TrimSpace(c.Kind)))
		if !kind.Valid() || strings.TrimSpace(c.Value) == "" {
			continue
		}
		priority := c.Priority
		if priority < 1 || priority > 5 {
			priority = 3
		}
		constraints = append(constraints, generation.Constraint{
			Kind:     kind,
			Value:    strings.TrimSpace(c.Value),
			Priority: priority,
		})
	}
	if len(constraints) == 0 {
		return nil, fmt.Errorf("no usable constraints in answer")
	}
	return constraints, nil
}

// stripJSONFences removes a surrounding markdown code fence if present.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func hasGoal(constraints []generation.Constraint) bool {
	for _, c := range constraints {
		if c.Kind == generation.ConstraintGoal {
			return true
		}
	}
	return false
}

var _ Extractor = (*LLMExtractor)(nil)
