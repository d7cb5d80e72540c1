package extraction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// NewExtractor creates an extractor based on configuration.
func NewExtractor(cfg Config, logger *zap.Logger) (Extractor, error) {
	switch cfg.Provider {
	case "", "heuristic":
		return NewHeuristicExtractor(cfg.Patterns), nil
	case "openai":
		return newOpenAIExtractor(cfg, logger)
	case "disabled":
		return &NoopExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NoopExtractor emits only the goal constraint, keeping intake functional
// when extraction is switched off.
type NoopExtractor struct{}

// Extract returns the goal constraint derived from the request head.
func (n *NoopExtractor) Extract(ctx context.Context, text string, hints map[string]string) ([]generation.Constraint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return applyHints([]generation.Constraint{goalConstraint(text)}, hints), nil
}

var _ Extractor = (*NoopExtractor)(nil)
