// Package generation defines the typed state threaded through the notebook
// generation pipeline and the merge schema that governs how stage outputs
// land in it. The state is the only shared object between stages; there are
// no package-level singletons.
package generation

import (
	"time"

	"github.com/google/uuid"
)

// Request is the natural-language generation request entering the pipeline.
type Request struct {
	// ID uniquely identifies one run. Assigned at intake if empty.
	ID string `json:"id"`

	// Text is the user's description of the workflow to scaffold.
	Text string `json:"text"`

	// Hints carries optional caller-supplied overrides keyed by hint name
	// (for example "architecture" or "title").
	Hints map[string]string `json:"hints,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewRequest creates a request with a fresh run ID.
func NewRequest(text string) Request {
	return Request{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// ConstraintKind categorizes an extracted requirement.
type ConstraintKind string

const (
	ConstraintGoal        ConstraintKind = "goal"
	ConstraintTone        ConstraintKind = "tone"
	ConstraintLength      ConstraintKind = "length"
	ConstraintStructure   ConstraintKind = "structure"
	ConstraintRuntime     ConstraintKind = "runtime"
	ConstraintEnvironment ConstraintKind = "environment"
)

// Valid reports whether the kind is one of the known categories.
func (k ConstraintKind) Valid() bool {
	switch k {
	case ConstraintGoal, ConstraintTone, ConstraintLength, ConstraintStructure, ConstraintRuntime, ConstraintEnvironment:
		return true
	}
	return false
}

// Constraint is a single requirement extracted from the request.
type Constraint struct {
	Kind  ConstraintKind `json:"kind"`
	Value string         `json:"value"`

	// Priority ranges 1 (nice to have) to 5 (must hold).
	Priority int `json:"priority"`
}

// Snippet is a retrieved documentation fragment grounding later stages.
type Snippet struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Heading string  `json:"heading,omitempty"`
	Score   float32 `json:"score"`
}

// ArchitecturePattern is the closed set of workflow shapes the composer can
// scaffold. Selection never produces a value outside this set.
type ArchitecturePattern string

const (
	// RouterPattern routes each request to exactly one specialist branch.
	RouterPattern ArchitecturePattern = "router"

	// SubagentsPattern fans work out to parallel workers under a supervisor.
	SubagentsPattern ArchitecturePattern = "subagents"

	// HybridPattern routes between subagent groups.
	HybridPattern ArchitecturePattern = "hybrid"
)

// Patterns returns the closed pattern set in scoring order.
func Patterns() []ArchitecturePattern {
	return []ArchitecturePattern{RouterPattern, SubagentsPattern, HybridPattern}
}

// Valid reports whether the pattern is a member of the closed set.
func (p ArchitecturePattern) Valid() bool {
	switch p {
	case RouterPattern, SubagentsPattern, HybridPattern:
		return true
	}
	return false
}

// PatternScore records one candidate's score during selection.
type PatternScore struct {
	Pattern ArchitecturePattern `json:"pattern"`
	Score   float64             `json:"score"`
}

// ArchitectureSelection is the outcome of the architecture stage.
type ArchitectureSelection struct {
	Pattern       ArchitecturePattern `json:"pattern"`
	Justification string              `json:"justification"`
	Candidates    []PatternScore      `json:"candidates,omitempty"`
}

// Section keys the composer emits and the validators require.
const (
	SectionSetup     = "setup"
	SectionConfig    = "config"
	SectionState     = "state"
	SectionTools     = "tools"
	SectionNodes     = "nodes"
	SectionGraph     = "graph"
	SectionExecution = "execution"
)

// SectionPlan is one planned section of the notebook.
type SectionPlan struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// NodeSpec is one workflow node in the designed graph.
type NodeSpec struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// EdgeSpec is a directed edge between workflow nodes. Conditional edges
// carry the route keys they branch on.
type EdgeSpec struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Conditional bool     `json:"conditional,omitempty"`
	Routes      []string `json:"routes,omitempty"`
}

// DesignSpec is the workflow design produced by the design stage.
type DesignSpec struct {
	Title        string              `json:"title"`
	Pattern      ArchitecturePattern `json:"pattern"`
	Sections     []SectionPlan       `json:"sections"`
	Nodes        []NodeSpec          `json:"nodes"`
	Edges        []EdgeSpec          `json:"edges"`
	EntryPoint   string              `json:"entry_point"`
	UnitEstimate int                 `json:"unit_estimate"`
}

// ToolSpec declares one tool the scaffolded workflow depends on.
type ToolSpec struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose"`
	Dependency string `json:"dependency,omitempty"`
}

// ToolPlan is the tooling stage output: tools plus the import lines the
// composed code must carry.
type ToolPlan struct {
	Tools   []ToolSpec `json:"tools"`
	Imports []string   `json:"imports"`
}

// UnitKind distinguishes markdown prose from executable code units.
type UnitKind string

const (
	UnitMarkdown UnitKind = "markdown"
	UnitCode     UnitKind = "code"
)

// Valid reports whether the kind is markdown or code.
func (k UnitKind) Valid() bool {
	return k == UnitMarkdown || k == UnitCode
}

// Unit is one artifact unit: a notebook cell before rendering.
type Unit struct {
	Kind    UnitKind `json:"kind"`
	Content string   `json:"content"`

	// Section tags the unit with the section key it belongs to.
	Section string `json:"section"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Report is the outcome of a single validation check.
type Report struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`

	// Skipped marks a dependent check that was not evaluated because its
	// prerequisite failed. A skipped report is never counted as passed.
	Skipped bool `json:"skipped,omitempty"`

	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Failed reports whether the check genuinely failed (skips excluded).
func (r Report) Failed() bool {
	return !r.Passed && !r.Skipped
}

// RepairSummary aggregates a run's validation outcome.
type RepairSummary struct {
	TotalChecks  int     `json:"total_checks"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	AttemptsUsed int     `json:"attempts_used"`
	AllPassed    bool    `json:"all_passed"`
}

// Summarize builds a RepairSummary from the final reports and the attempts
// spent. Skipped reports count toward the total but not as passed.
func Summarize(reports []Report, attempts int) RepairSummary {
	s := RepairSummary{TotalChecks: len(reports), AttemptsUsed: attempts}
	for _, r := range reports {
		if r.Passed {
			s.Passed++
		} else if !r.Skipped {
			s.Failed++
		}
	}
	if s.TotalChecks > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.TotalChecks)
	}
	s.AllPassed = s.Passed == s.TotalChecks
	return s
}

// Manifest is the packaging record. It always states the run outcome,
// including still-failing reports, so a reviewer never has to infer it.
type Manifest struct {
	RunID        string `json:"run_id"`
	Title        string `json:"title"`
	Architecture string `json:"architecture"`

	UnitCount       int `json:"unit_count"`
	ConstraintCount int `json:"constraint_count"`

	// Files maps artifact names to paths relative to the package directory.
	Files map[string]string `json:"files,omitempty"`

	Reports []Report      `json:"reports"`
	Summary RepairSummary `json:"summary"`

	GenerationComplete bool   `json:"generation_complete"`
	ErrorMessage       string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
