// Package validation inspects generated notebook units. Every check is a
// pure function of the unit slice: no I/O, no mutation, no clock, so a
// check list always yields the same reports for the same artifact.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/artifact"
	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// Check names, in their fixed report order.
const (
	CheckNotebookFormat   = "notebook_format"
	CheckNoPlaceholders   = "no_placeholders"
	CheckRequiredSections = "required_sections"
	CheckRequiredImports  = "required_imports"
	CheckGraphScaffold    = "graph_scaffold"
	CheckGraphWiring      = "graph_wiring"
	CheckExecutionCell    = "execution_cell"
)

// Check inspects an artifact and reports the outcome.
type Check interface {
	Name() string
	Inspect(units []generation.Unit) generation.Report
}

// Static returns the static-round check list in its fixed order. The first
// check is foundational: when it fails the rest of the round is skipped.
func Static(rules Rules) []Check {
	return []Check{
		notebookFormatCheck{},
		noPlaceholdersCheck{markers: rules.PlaceholderMarkers},
		requiredSectionsCheck{sections: rules.RequiredSections},
		requiredImportsCheck{imports: rules.RequiredImports},
		graphScaffoldCheck{},
	}
}

// Runtime returns the runtime-round check list in its fixed order.
func Runtime() []Check {
	return []Check{
		graphWiringCheck{},
		executionCellCheck{},
	}
}

func pass(name, message string) generation.Report {
	return generation.Report{Check: name, Passed: true, Message: message}
}

func fail(name, message string, suggestions ...string) generation.Report {
	return generation.Report{Check: name, Passed: false, Message: message, Suggestions: suggestions}
}

// codeContent joins all code-unit content in order.
func codeContent(units []generation.Unit) string {
	var b strings.Builder
	for _, u := range units {
		if u.Kind == generation.UnitCode {
			b.WriteString(u.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// notebookFormatCheck verifies the artifact renders as a valid notebook
// document. All other checks assume this one held.
type notebookFormatCheck struct{}

func (notebookFormatCheck) Name() string { return CheckNotebookFormat }

// Foundational marks the check whose failure skips the rest of its round.
func (notebookFormatCheck) Foundational() bool { return true }

func (c notebookFormatCheck) Inspect(units []generation.Unit) generation.Report {
	if len(units) == 0 {
		return fail(c.Name(), "no units to validate",
			"compose the notebook before validating")
	}
	for i, u := range units {
		if !u.Kind.Valid() {
			return fail(c.Name(), fmt.Sprintf("unit %d has invalid kind %q", i, u.Kind),
				"units must be markdown or code")
		}
	}

	data, err := artifact.Render(units)
	if err != nil {
		return fail(c.Name(), fmt.Sprintf("notebook render failed: %v", err),
			"check unit contents for values that cannot serialize")
	}
	if _, err := artifact.ParseNotebook(data); err != nil {
		return fail(c.Name(), fmt.Sprintf("rendered notebook does not parse: %v", err),
			"verify all required notebook fields are present")
	}

	return pass(c.Name(), "notebook renders as valid nbformat 4 JSON")
}

// noPlaceholdersCheck scans code units for leftover scaffolding markers.
type noPlaceholdersCheck struct {
	markers []string
}

func (noPlaceholdersCheck) Name() string { return CheckNoPlaceholders }

func (c noPlaceholdersCheck) Inspect(units []generation.Unit) generation.Report {
	counts := map[string]int{}
	var order []string

	record := func(marker string, n int) {
		if n == 0 {
			return
		}
		if counts[marker] == 0 {
			order = append(order, marker)
		}
		counts[marker] += n
	}

	for _, u := range units {
		if u.Kind != generation.UnitCode {
			continue
		}
		for _, marker := range c.markers {
			record(marker, strings.Count(u.Content, marker))
		}
		// Standalone ellipsis lines are placeholders; ellipsis inside a
		// string or comment text is not.
		for _, line := range strings.Split(u.Content, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "..." || trimmed == "# ..." {
				record("...", 1)
			}
		}
	}

	if len(order) > 0 {
		found := make([]string, len(order))
		for i, marker := range order {
			found[i] = fmt.Sprintf("%s (%dx)", marker, counts[marker])
		}
		return fail(c.Name(), "found placeholders: "+strings.Join(found, ", "),
			"replace placeholder markers with working code",
			"remove standalone ellipsis lines")
	}

	return pass(c.Name(), "no placeholder markers in code units")
}

// requiredSectionsCheck verifies the section tags the notebook must carry.
type requiredSectionsCheck struct {
	sections []string
}

func (requiredSectionsCheck) Name() string { return CheckRequiredSections }

func (c requiredSectionsCheck) Inspect(units []generation.Unit) generation.Report {
	present := map[string]bool{}
	for _, u := range units {
		if u.Section != "" {
			present[u.Section] = true
		}
	}

	var missing []string
	for _, s := range c.sections {
		if !present[s] {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fail(c.Name(), "missing required sections: "+strings.Join(missing, ", "),
			"add units tagged with section metadata for: "+strings.Join(missing, ", "))
	}

	have := make([]string, 0, len(present))
	for s := range present {
		have = append(have, s)
	}
	sort.Strings(have)
	return pass(c.Name(), "all required sections present: "+strings.Join(have, ", "))
}

// requiredImportsCheck verifies the code references the required imports.
type requiredImportsCheck struct {
	imports []string
}

func (requiredImportsCheck) Name() string { return CheckRequiredImports }

func (c requiredImportsCheck) Inspect(units []generation.Unit) generation.Report {
	code := codeContent(units)

	var missing []string
	for _, imp := range c.imports {
		if !strings.Contains(code, imp) {
			missing = append(missing, imp)
		}
	}
	if len(missing) > 0 {
		return fail(c.Name(), "missing required imports: "+strings.Join(missing, ", "),
			"add import statements for: "+strings.Join(missing, ", "),
			"check the setup cells for missing imports")
	}

	return pass(c.Name(), "all required imports present")
}

// graphScaffoldCheck verifies the graph is constructed and compiled.
type graphScaffoldCheck struct{}

func (graphScaffoldCheck) Name() string { return CheckGraphScaffold }

func (c graphScaffoldCheck) Inspect(units []generation.Unit) generation.Report {
	code := codeContent(units)

	if !strings.Contains(code, "StateGraph(") {
		return fail(c.Name(), "no StateGraph construction found",
			"add StateGraph construction code to the graph section")
	}
	// ".compile(" rather than ".compile()": the call usually carries a
	// checkpointer argument.
	if !strings.Contains(code, ".compile(") {
		return fail(c.Name(), "graph compile call (.compile) not found",
			"compile the graph before execution")
	}

	return pass(c.Name(), "graph construction and compile call present")
}

// executionCellCheck verifies an execution-section cell invokes the
// compiled graph.
type executionCellCheck struct{}

func (executionCellCheck) Name() string { return CheckExecutionCell }

func (c executionCellCheck) Inspect(units []generation.Unit) generation.Report {
	for _, u := range units {
		if u.Kind == generation.UnitCode && u.Section == generation.SectionExecution &&
			strings.Contains(u.Content, ".invoke(") {
			return pass(c.Name(), "execution cell invokes the compiled graph")
		}
	}
	return fail(c.Name(), "no execution cell invokes the compiled graph",
		"add an execution-section code unit calling graph.invoke(...)")
}
