package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// goalHeadLimit bounds the request head used as the goal constraint.
const goalHeadLimit = 200

// HeuristicExtractor derives constraints by pattern matching. Extraction is
// deterministic: the same text always yields the same constraints in the
// same order.
type HeuristicExtractor struct {
	patterns []*compiledPattern
}

// compiledPattern holds a pre-compiled regex pattern.
type compiledPattern struct {
	Pattern
	regex *regexp.Regexp
}

// NewHeuristicExtractor creates a heuristic extractor. Invalid patterns are
// skipped rather than failing construction.
func NewHeuristicExtractor(patterns []Pattern) *HeuristicExtractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	compiled := make([]*compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		compiled = append(compiled, &compiledPattern{Pattern: p, regex: re})
	}

	return &HeuristicExtractor{patterns: compiled}
}

// Extract returns the goal constraint followed by one constraint per matched
// pattern, in table order, deduplicated by kind and value.
func (h *HeuristicExtractor) Extract(ctx context.Context, text string, hints map[string]string) ([]generation.Constraint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	constraints := []generation.Constraint{goalConstraint(text)}

	seen := map[string]bool{}
	for _, p := range h.patterns {
		value := matchValue(p.regex, text)
		if value == "" {
			continue
		}
		key := string(p.Kind) + "\x00" + value
		if seen[key] {
			continue
		}
		seen[key] = true
		constraints = append(constraints, generation.Constraint{
			Kind:     p.Kind,
			Value:    value,
			Priority: p.Priority,
		})
	}

	return applyHints(constraints, hints), nil
}

// matchValue returns the first capture group when the pattern has one, the
// whole match otherwise, lowercased.
func matchValue(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	value := m[0]
	if len(m) > 1 && m[1] != "" {
		value = m[1]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// goalConstraint takes the head of the request as the run's goal.
func goalConstraint(text string) generation.Constraint {
	return generation.Constraint{
		Kind:     generation.ConstraintGoal,
		Value:    head(text, goalHeadLimit),
		Priority: 5,
	}
}

// head returns the first sentence of text, capped at limit runes.
func head(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) {
				text = text[:i+1]
			}
			break
		}
	}
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}

// applyHints overrides or adds constraints from caller-supplied hints. Hint
// keys are constraint kinds; unknown keys are ignored.
func applyHints(constraints []generation.Constraint, hints map[string]string) []generation.Constraint {
	if len(hints) == 0 {
		return constraints
	}

	// Deterministic order: fixed kind order, not map order.
	for _, kind := range []generation.ConstraintKind{
		generation.ConstraintGoal,
		generation.ConstraintTone,
		generation.ConstraintLength,
		generation.ConstraintStructure,
		generation.ConstraintRuntime,
		generation.ConstraintEnvironment,
	} {
		value, ok := hints[string(kind)]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))

		replaced := false
		for i := range constraints {
			if constraints[i].Kind == kind {
				constraints[i].Value = value
				constraints[i].Priority = 5
				replaced = true
				break
			}
		}
		if !replaced {
			constraints = append(constraints, generation.Constraint{
				Kind:     kind,
				Value:    value,
				Priority: 5,
			})
		}
	}
	return constraints
}

var _ Extractor = (*HeuristicExtractor)(nil)
