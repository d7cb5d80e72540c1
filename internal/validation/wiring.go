package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

var (
	addNodeRe    = regexp.MustCompile(`add_node\(\s*"([^"]+)"`)
	addEdgeRe    = regexp.MustCompile(`add_edge\(\s*(START|"[^"]+")\s*,\s*(END|"[^"]+")\s*\)`)
	condEdgeRe   = regexp.MustCompile(`add_conditional_edges\(\s*"([^"]+)"[^{]*\{([^}]*)\}`)
	entryPointRe = regexp.MustCompile(`set_entry_point\(\s*"([^"]+)"`)
	mapTargetRe  = regexp.MustCompile(`:\s*(END|"[^"]+")`)
)

// graphWiringCheck verifies the declared edges form a runnable graph:
// every endpoint is a declared node or END, an entry point exists, and END
// is reachable.
type graphWiringCheck struct{}

func (graphWiringCheck) Name() string { return CheckGraphWiring }

func (c graphWiringCheck) Inspect(units []generation.Unit) generation.Report {
	code := codeContent(units)

	declared := map[string]bool{}
	for _, m := range addNodeRe.FindAllStringSubmatch(code, -1) {
		declared[m[1]] = true
	}

	var problems []string
	reported := map[string]bool{}
	undeclared := func(name string) {
		msg := fmt.Sprintf("edge endpoint %q is not a declared node", name)
		if !reported[msg] {
			reported[msg] = true
			problems = append(problems, msg)
		}
	}

	entrySet := false
	endReachable := false

	for _, m := range addEdgeRe.FindAllStringSubmatch(code, -1) {
		from, to := m[1], m[2]
		if from == "START" {
			entrySet = true
		} else if name := strings.Trim(from, `"`); !declared[name] {
			undeclared(name)
		}
		if to == "END" {
			endReachable = true
		} else if name := strings.Trim(to, `"`); !declared[name] {
			undeclared(name)
		}
	}

	for _, m := range condEdgeRe.FindAllStringSubmatch(code, -1) {
		if !declared[m[1]] {
			undeclared(m[1])
		}
		for _, t := range mapTargetRe.FindAllStringSubmatch(m[2], -1) {
			if t[1] == "END" {
				endReachable = true
				continue
			}
			if name := strings.Trim(t[1], `"`); !declared[name] {
				undeclared(name)
			}
		}
	}

	for _, m := range entryPointRe.FindAllStringSubmatch(code, -1) {
		entrySet = true
		if !declared[m[1]] {
			undeclared(m[1])
		}
	}

	if len(declared) == 0 {
		problems = append([]string{"no add_node declarations found"}, problems...)
	}
	if !entrySet {
		problems = append(problems, "entry point not set")
	}
	if !endReachable {
		problems = append(problems, "END is not reachable from the declared edges")
	}

	if len(problems) > 0 {
		return fail(c.Name(), strings.Join(problems, "; "),
			"declare every edge endpoint with add_node",
			"wire START to the entry node and route at least one edge to END")
	}

	return pass(c.Name(), fmt.Sprintf("graph wiring consistent: %d nodes, entry set, END reachable", len(declared)))
}
