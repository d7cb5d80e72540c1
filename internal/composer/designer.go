package composer

import (
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// EndNode is the terminal sentinel used in edge routes. It matches the END
// constant of the scaffolded graph code.
const EndNode = "END"

// finishRoute is the supervisor's stop decision.
const finishRoute = "FINISH"

// branchTerms are task words recognized in the goal when deriving branch
// names. Scanned in order; at most three are taken.
var branchTerms = []string{
	"search", "research", "analyze", "summarize", "classify",
	"answer", "write", "review", "plan", "translate", "billing", "support",
}

// sectionPlan returns the full ordered section plan every design carries.
func sectionPlan() []generation.SectionPlan {
	return []generation.SectionPlan{
		{Key: generation.SectionSetup, Title: "Setup"},
		{Key: generation.SectionConfig, Title: "Configuration"},
		{Key: generation.SectionState, Title: "Workflow State"},
		{Key: generation.SectionTools, Title: "Tools"},
		{Key: generation.SectionNodes, Title: "Workflow Nodes"},
		{Key: generation.SectionGraph, Title: "Graph Construction"},
		{Key: generation.SectionExecution, Title: "Execution"},
	}
}

// DesignWorkflow expands the selected pattern into a full graph design:
// section plan, node list, edge list, and entry point.
func DesignWorkflow(req generation.Request, selection generation.ArchitectureSelection, constraints []generation.Constraint) generation.DesignSpec {
	branches := deriveBranches(constraints)

	var nodes []generation.NodeSpec
	var edges []generation.EdgeSpec
	var entry string

	switch selection.Pattern {
	case generation.SubagentsPattern:
		nodes, edges, entry = subagentsTopology(branches)
	case generation.HybridPattern:
		nodes, edges, entry = hybridTopology(branches)
	default:
		nodes, edges, entry = routerTopology(branches)
	}

	pattern := selection.Pattern
	if !pattern.Valid() {
		pattern = generation.RouterPattern
	}

	sections := sectionPlan()
	return generation.DesignSpec{
		Title:        workflowTitle(req, constraints),
		Pattern:      pattern,
		Sections:     sections,
		Nodes:        nodes,
		Edges:        edges,
		EntryPoint:   entry,
		UnitEstimate: 2 * len(sections),
	}
}

// routerTopology: one classifier fanning out to branch specialists, each
// terminating the run.
func routerTopology(branches []string) ([]generation.NodeSpec, []generation.EdgeSpec, string) {
	nodes := []generation.NodeSpec{
		{Name: "router", Purpose: "Classify the request and pick a branch"},
	}
	routes := make([]string, 0, len(branches)+1)
	for _, b := range branches {
		nodes = append(nodes, generation.NodeSpec{
			Name:    b,
			Purpose: "Handle " + strings.ReplaceAll(b, "_", " ") + " requests",
		})
		routes = append(routes, b)
	}
	routes = append(routes, EndNode)

	edges := []generation.EdgeSpec{
		{From: "router", Conditional: true, Routes: routes},
	}
	for _, b := range branches {
		edges = append(edges, generation.EdgeSpec{From: b, To: EndNode})
	}
	return nodes, edges, "router"
}

// subagentsTopology: a supervisor delegating to workers that always report
// back, until the supervisor decides FINISH.
func subagentsTopology(branches []string) ([]generation.NodeSpec, []generation.EdgeSpec, string) {
	nodes := []generation.NodeSpec{
		{Name: "supervisor", Purpose: "Decompose the task and coordinate workers"},
	}
	routes := make([]string, 0, len(branches)+1)
	for _, b := range branches {
		worker := b + "_agent"
		nodes = append(nodes, generation.NodeSpec{
			Name:    worker,
			Purpose: "Specialist worker for " + strings.ReplaceAll(b, "_", " "),
		})
		routes = append(routes, worker)
	}
	routes = append(routes, EndNode)

	edges := []generation.EdgeSpec{
		{From: "supervisor", Conditional: true, Routes: routes},
	}
	for _, b := range branches {
		edges = append(edges, generation.EdgeSpec{From: b + "_agent", To: "supervisor"})
	}
	return nodes, edges, "supervisor"
}

// hybridTopology: a router sending simple requests down a fast path and
// complex ones to a supervised worker group.
func hybridTopology(branches []string) ([]generation.NodeSpec, []generation.EdgeSpec, string) {
	nodes := []generation.NodeSpec{
		{Name: "router", Purpose: "Decide between the fast path and the supervised group"},
		{Name: "fast_path", Purpose: "Answer simple requests directly"},
		{Name: "supervisor", Purpose: "Coordinate workers for complex requests"},
	}
	workerRoutes := make([]string, 0, len(branches)+1)
	for _, b := range branches {
		worker := b + "_agent"
		nodes = append(nodes, generation.NodeSpec{
			Name:    worker,
			Purpose: "Specialist worker for " + strings.ReplaceAll(b, "_", " "),
		})
		workerRoutes = append(workerRoutes, worker)
	}
	workerRoutes = append(workerRoutes, EndNode)

	edges := []generation.EdgeSpec{
		{From: "router", Conditional: true, Routes: []string{"fast_path", "supervisor"}},
		{From: "fast_path", To: EndNode},
		{From: "supervisor", Conditional: true, Routes: workerRoutes},
	}
	for _, b := range branches {
		edges = append(edges, generation.EdgeSpec{From: b + "_agent", To: "supervisor"})
	}
	return nodes, edges, "router"
}

// deriveBranches picks branch names from goal evidence, defaulting to a
// generic specialist pair.
func deriveBranches(constraints []generation.Constraint) []string {
	var goal string
	for _, c := range constraints {
		if c.Kind == generation.ConstraintGoal {
			goal = strings.ToLower(c.Value)
			break
		}
	}

	var branches []string
	for _, term := range branchTerms {
		if strings.Contains(goal, term) {
			branches = append(branches, term)
			if len(branches) == 3 {
				break
			}
		}
	}
	if len(branches) < 2 {
		branches = []string{"general", "detail"}
	}
	return branches
}

// workflowTitle derives a notebook title from the goal constraint.
func workflowTitle(req generation.Request, constraints []generation.Constraint) string {
	for _, c := range constraints {
		if c.Kind == generation.ConstraintGoal && strings.TrimSpace(c.Value) != "" {
			title := strings.TrimSuffix(strings.TrimSpace(c.Value), ".")
			return capitalize(title)
		}
	}
	if head := strings.TrimSpace(req.Text); head != "" {
		if len(head) > 80 {
			head = head[:80]
		}
		return capitalize(head)
	}
	return "Agent Workflow"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
