// Package composer turns constraints and retrieved context into a concrete
// workflow design and its notebook units. Every function in this package is
// a pure function of its inputs: same constraints, same snippets, same
// output, which is what makes generation reproducible end to end.
package composer

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// patternEvidence lists the cue terms that vote for each pattern. Scanned in
// declaration order so justifications are stable.
var patternEvidence = map[generation.ArchitecturePattern][]string{
	generation.RouterPattern: {
		"router", "route", "routing", "classify", "classification",
		"dispatch", "triage", "intent", "categorize", "single specialist",
	},
	generation.SubagentsPattern: {
		"subagent", "sub-agent", "supervisor", "delegate", "delegation",
		"specialist team", "workers", "parallel", "decompose", "multi-agent",
		"research team", "collaborate",
	},
	generation.HybridPattern: {
		"hybrid", "escalate", "escalation", "tiered", "tiers",
		"combine routing", "mixed", "fast path",
	},
}

// SelectArchitecture scores the closed pattern set against constraint and
// snippet evidence. Constraint mentions weigh by priority, snippet mentions
// by retrieval score. With no evidence at all the router pattern is selected
// and the justification says so.
func SelectArchitecture(constraints []generation.Constraint, snippets []generation.Snippet) generation.ArchitectureSelection {
	scores := make(map[generation.ArchitecturePattern]float64, 3)
	matched := make(map[generation.ArchitecturePattern][]string, 3)

	for _, pattern := range generation.Patterns() {
		for _, term := range patternEvidence[pattern] {
			weight := 0.0
			for _, c := range constraints {
				if strings.Contains(strings.ToLower(c.Value), term) {
					weight += float64(c.Priority)
				}
			}
			for _, s := range snippets {
				text := strings.ToLower(s.Heading + " " + s.Content)
				if strings.Contains(text, term) {
					vote := float64(s.Score)
					if vote < 0.1 {
						vote = 0.1
					}
					weight += vote
				}
			}
			if weight > 0 {
				scores[pattern] += weight
				matched[pattern] = append(matched[pattern], term)
			}
		}
	}

	candidates := make([]generation.PatternScore, 0, 3)
	best := generation.RouterPattern
	bestScore := 0.0
	for _, pattern := range generation.Patterns() {
		candidates = append(candidates, generation.PatternScore{
			Pattern: pattern,
			Score:   scores[pattern],
		})
		// Strictly greater: ties resolve to the earlier pattern.
		if scores[pattern] > bestScore {
			best = pattern
			bestScore = scores[pattern]
		}
	}

	if bestScore == 0 {
		return generation.ArchitectureSelection{
			Pattern:       generation.RouterPattern,
			Justification: "no architecture evidence in constraints or retrieved context; defaulting to router",
			Candidates:    candidates,
		}
	}

	terms := matched[best]
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return generation.ArchitectureSelection{
		Pattern: best,
		Justification: fmt.Sprintf("%s scored %.1f on evidence terms %s across %d constraints and %d snippets",
			best, bestScore, strings.Join(terms, ", "), len(constraints), len(snippets)),
		Candidates: candidates,
	}
}
