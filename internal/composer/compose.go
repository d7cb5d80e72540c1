package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// Compose renders the design into ordered notebook units: a markdown lead
// plus code per section. The emitted code is complete and self-contained;
// templates never leave placeholder markers behind.
func Compose(req generation.Request, design generation.DesignSpec, plan generation.ToolPlan, snippets []generation.Snippet) []generation.Unit {
	units := make([]generation.Unit, 0, design.UnitEstimate)

	units = append(units, titleUnit(design, snippets))
	units = append(units, pipUnit(plan))
	units = append(units, codeUnit(generation.SectionSetup, strings.Join(plan.Imports, "\n")))

	units = append(units, markdownUnit(generation.SectionConfig,
		"## Configuration\n\nModel selection and credential checks. The workflow fails fast when the API key is missing."))
	units = append(units, codeUnit(generation.SectionConfig, configCode()))

	units = append(units, markdownUnit(generation.SectionState,
		"## Workflow State\n\nShared state flowing through every node. Message history accumulates; the remaining fields are overwritten by the node that owns them."))
	units = append(units, codeUnit(generation.SectionState, stateCode(design.Pattern)))

	units = append(units, markdownUnit(generation.SectionTools, toolsMarkdown(plan)))
	units = append(units, codeUnit(generation.SectionTools, toolsCode(plan)))

	units = append(units, markdownUnit(generation.SectionNodes, nodesMarkdown(design)))
	for _, code := range nodeUnits(design) {
		units = append(units, codeUnit(generation.SectionNodes, code))
	}

	units = append(units, markdownUnit(generation.SectionGraph,
		"## Graph Construction\n\nNodes and edges are wired into a StateGraph and compiled with an in-memory checkpointer."))
	units = append(units, codeUnit(generation.SectionGraph, graphCode(design)))

	units = append(units, markdownUnit(generation.SectionExecution,
		"## Execution\n\nRun the compiled graph against an example request."))
	units = append(units, codeUnit(generation.SectionExecution, executionCode(req, design)))

	return units
}

func markdownUnit(section, content string) generation.Unit {
	return generation.Unit{Kind: generation.UnitMarkdown, Content: content, Section: section}
}

func codeUnit(section, content string) generation.Unit {
	return generation.Unit{Kind: generation.UnitCode, Content: content, Section: section}
}

// titleUnit opens the notebook: title, pattern summary, grounding sources.
func titleUnit(design generation.DesignSpec, snippets []generation.Snippet) generation.Unit {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", design.Title)
	fmt.Fprintf(&b, "A %s workflow scaffolded for LangGraph. ", design.Pattern)
	b.WriteString("The notebook walks through setup, configuration, state, tools, nodes, graph construction, and a sample run.\n")

	sources := snippetSources(snippets)
	if len(sources) > 0 {
		b.WriteString("\nGrounded on retrieved documentation:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return markdownUnit(generation.SectionSetup, strings.TrimRight(b.String(), "\n"))
}

// snippetSources lists distinct snippet sources in first-seen order, capped
// at five.
func snippetSources(snippets []generation.Snippet) []string {
	var sources []string
	seen := map[string]bool{}
	for _, s := range snippets {
		label := s.Source
		if s.Heading != "" {
			label = s.Source + " (" + s.Heading + ")"
		}
		if s.Source == "" || seen[s.Source] {
			continue
		}
		seen[s.Source] = true
		sources = append(sources, label)
		if len(sources) == 5 {
			break
		}
	}
	return sources
}

// pipUnit installs the runtime dependencies, including tool packages.
func pipUnit(plan generation.ToolPlan) generation.Unit {
	deps := []string{"langgraph", "langchain-openai", "langchain-core", "typing-extensions", "pydantic"}
	seen := map[string]bool{}
	for _, d := range deps {
		seen[d] = true
	}
	extra := make([]string, 0, len(plan.Tools))
	for _, t := range plan.Tools {
		if t.Dependency != "" && !seen[t.Dependency] {
			seen[t.Dependency] = true
			extra = append(extra, t.Dependency)
		}
	}
	sort.Strings(extra)
	deps = append(deps, extra...)

	var b strings.Builder
	b.WriteString("%pip install -q ")
	b.WriteString(strings.Join(deps, " "))
	return codeUnit(generation.SectionSetup, b.String())
}

func configCode() string {
	return `MODEL_NAME = "gpt-4o-mini"
TEMPERATURE = 0

if not os.environ.get("OPENAI_API_KEY"):
    raise RuntimeError("OPENAI_API_KEY is not set")`
}

// stateCode emits the WorkflowState class for the pattern. Field sets match
// what the node functions read and write.
func stateCode(pattern generation.ArchitecturePattern) string {
	var fields string
	switch pattern {
	case generation.SubagentsPattern:
		fields = `    next: str
    instructions: str
    task_results: Dict[str, str]`
	case generation.HybridPattern:
		fields = `    route: str
    next: str
    instructions: str
    task_results: Dict[str, str]
    final_output: str`
	default:
		fields = `    route: str
    results: Dict[str, str]
    final_output: str`
	}

	return `class WorkflowState(MessagesState):
    """Shared workflow state.

    Inherits message history from MessagesState.
    """

` + fields
}

func toolsMarkdown(plan generation.ToolPlan) string {
	if len(plan.Tools) == 0 {
		return "## Tools\n\nThis workflow needs no external tools; nodes work from the conversation alone."
	}
	var b strings.Builder
	b.WriteString("## Tools\n\nHelper functions the nodes can call:\n")
	for _, t := range plan.Tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Purpose)
	}
	return strings.TrimRight(b.String(), "\n")
}

// toolsCode emits one complete function per planned tool plus a registry.
func toolsCode(plan generation.ToolPlan) string {
	if len(plan.Tools) == 0 {
		return `TOOLS: Dict[str, object] = {}`
	}

	var b strings.Builder
	names := make([]string, 0, len(plan.Tools))
	for i, t := range plan.Tools {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(toolFunction(t))
		names = append(names, fmt.Sprintf("%q: %s", t.Name, t.Name))
	}
	fmt.Fprintf(&b, "\n\n\nTOOLS: Dict[str, object] = {%s}", strings.Join(names, ", "))
	return b.String()
}

// toolFunction maps a tool spec to a working implementation.
func toolFunction(t generation.ToolSpec) string {
	switch t.Name {
	case "web_search":
		return `def web_search(query: str) -> str:
    """Search the web and return the top result bodies."""
    from duckduckgo_search import DDGS

    with DDGS() as ddgs:
        hits = [hit["body"] for hit in ddgs.text(query, max_results=3)]
    return "\n".join(hits)`
	case "parse_json":
		return `def parse_json(text: str) -> dict:
    """Parse a JSON payload into a dictionary."""
    return json.loads(text)`
	case "read_text_file":
		return `def read_text_file(path: str) -> str:
    """Read a local text file."""
    with open(path, encoding="utf-8") as fh:
        return fh.read()`
	case "word_count":
		return `def word_count(text: str) -> int:
    """Count words to size summaries."""
    return len(text.split())`
	default:
		return fmt.Sprintf(`def %s(payload: str) -> str:
    """%s."""
    return payload`, t.Name, t.Purpose)
	}
}

func nodesMarkdown(design generation.DesignSpec) string {
	var b strings.Builder
	b.WriteString("## Workflow Nodes\n\n")
	for _, n := range design.Nodes {
		fmt.Fprintf(&b, "- %s: %s\n", n.Name, n.Purpose)
	}
	return strings.TrimRight(b.String(), "\n")
}

// nodeUnits renders one code block per workflow node.
func nodeUnits(design generation.DesignSpec) []string {
	var blocks []string
	for _, n := range design.Nodes {
		switch n.Name {
		case "router":
			blocks = append(blocks, routerNodeCode(conditionalTargets(design, "router")))
		case "supervisor":
			blocks = append(blocks, supervisorNodeCode(conditionalTargets(design, "supervisor")))
		case "fast_path":
			blocks = append(blocks, fastPathNodeCode(n))
		default:
			if strings.HasSuffix(n.Name, "_agent") {
				blocks = append(blocks, workerNodeCode(n))
			} else {
				blocks = append(blocks, branchNodeCode(n))
			}
		}
	}
	return blocks
}

// conditionalTargets returns the non-terminal targets of a node's
// conditional edge.
func conditionalTargets(design generation.DesignSpec, from string) []string {
	for _, e := range design.Edges {
		if e.From != from || !e.Conditional {
			continue
		}
		targets := make([]string, 0, len(e.Routes))
		for _, r := range e.Routes {
			if r != EndNode {
				targets = append(targets, r)
			}
		}
		return targets
	}
	return nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func routerNodeCode(branches []string) string {
	return fmt.Sprintf(`class RouteDecision(BaseModel):
    """Structured routing decision."""

    route: Literal[%s] = Field(description="Branch that should handle the request")
    reasoning: str = Field(description="Why this branch was selected")


def router_node(state: WorkflowState) -> dict:
    """Classify the request and pick a branch."""
    last_message = state["messages"][-1].content if state["messages"] else ""
    llm = ChatOpenAI(model=MODEL_NAME, temperature=0)
    decision = llm.with_structured_output(RouteDecision).invoke(
        [
            SystemMessage(content="Route the request to one of: %s."),
            HumanMessage(content=last_message),
        ]
    )
    return {"route": decision.route}`,
		quoteList(branches), strings.Join(branches, ", "))
}

func branchNodeCode(n generation.NodeSpec) string {
	return fmt.Sprintf(`def %s_node(state: WorkflowState) -> dict:
    """%s."""
    llm = ChatOpenAI(model=MODEL_NAME, temperature=TEMPERATURE)
    system = SystemMessage(content=%q)
    response = llm.invoke([system] + state["messages"])
    results = dict(state.get("results") or {})
    results[%q] = response.content
    return {"results": results, "final_output": response.content, "messages": [response]}`,
		n.Name, n.Purpose,
		"You are the "+strings.ReplaceAll(n.Name, "_", " ")+" specialist. "+n.Purpose+".",
		n.Name)
}

func fastPathNodeCode(n generation.NodeSpec) string {
	return fmt.Sprintf(`def fast_path_node(state: WorkflowState) -> dict:
    """%s."""
    llm = ChatOpenAI(model=MODEL_NAME, temperature=TEMPERATURE)
    system = SystemMessage(content="Answer the request directly and concisely.")
    response = llm.invoke([system] + state["messages"])
    return {"final_output": response.content, "messages": [response]}`, n.Purpose)
}

func supervisorNodeCode(workers []string) string {
	return fmt.Sprintf(`class SupervisorDecision(BaseModel):
    """Structured delegation decision."""

    next: Literal[%s, "FINISH"] = Field(description="Worker to run next, or FINISH when done")
    instructions: str = Field(description="Instructions for the selected worker")


def supervisor_node(state: WorkflowState) -> dict:
    """Decompose the task and coordinate workers."""
    task_results = state.get("task_results") or {}
    completed = ", ".join(sorted(task_results)) if task_results else "none"
    llm = ChatOpenAI(model=MODEL_NAME, temperature=0)
    decision = llm.with_structured_output(SupervisorDecision).invoke(
        [
            SystemMessage(
                content="You coordinate these workers: %s. "
                "Completed so far: " + completed + ". "
                "Pick the next worker, or FINISH when the task is complete."
            ),
            HumanMessage(content=state["messages"][-1].content if state["messages"] else ""),
        ]
    )
    return {"next": decision.next, "instructions": decision.instructions}`,
		quoteList(workers), strings.Join(workers, ", "))
}

func workerNodeCode(n generation.NodeSpec) string {
	specialty := strings.TrimSuffix(n.Name, "_agent")
	return fmt.Sprintf(`def %s_node(state: WorkflowState) -> dict:
    """%s."""
    llm = ChatOpenAI(model=MODEL_NAME, temperature=TEMPERATURE)
    system = SystemMessage(content=%q)
    task = HumanMessage(content=state.get("instructions") or "Contribute your specialty.")
    response = llm.invoke([system, task] + state["messages"])
    task_results = dict(state.get("task_results") or {})
    task_results[%q] = response.content
    return {"task_results": task_results, "messages": [response]}`,
		n.Name, n.Purpose,
		"You are the "+specialty+" specialist. Follow the supervisor's instructions.",
		n.Name)
}

// graphCode wires the designed edges into a StateGraph and compiles it.
func graphCode(design generation.DesignSpec) string {
	var b strings.Builder

	// Conditional edges need a decision function each.
	for _, e := range design.Edges {
		if !e.Conditional {
			continue
		}
		b.WriteString(deciderCode(e))
		b.WriteString("\n\n\n")
	}

	b.WriteString("workflow = StateGraph(WorkflowState)\n")
	for _, n := range design.Nodes {
		fmt.Fprintf(&b, "workflow.add_node(%q, %s_node)\n", n.Name, n.Name)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "workflow.add_edge(START, %q)\n", design.EntryPoint)

	for _, e := range design.Edges {
		if e.Conditional {
			fmt.Fprintf(&b, "workflow.add_conditional_edges(%q, %s, {%s})\n",
				e.From, deciderName(e.From), conditionalMapping(e))
			continue
		}
		if e.To == EndNode {
			fmt.Fprintf(&b, "workflow.add_edge(%q, END)\n", e.From)
		} else {
			fmt.Fprintf(&b, "workflow.add_edge(%q, %q)\n", e.From, e.To)
		}
	}

	b.WriteString("\nmemory = MemorySaver()\n")
	b.WriteString("graph = workflow.compile(checkpointer=memory)")
	return b.String()
}

func deciderName(from string) string {
	return "route_after_" + from
}

// stateKeyFor maps a deciding node to the state field it wrote.
func stateKeyFor(from string) string {
	if from == "supervisor" {
		return "next"
	}
	return "route"
}

// terminalKeyFor maps a deciding node to its stop value.
func terminalKeyFor(from string) string {
	if from == "supervisor" {
		return finishRoute
	}
	return EndNode
}

// deciderCode renders the branch decision function for a conditional edge.
func deciderCode(e generation.EdgeSpec) string {
	targets := make([]string, 0, len(e.Routes))
	hasEnd := false
	for _, r := range e.Routes {
		if r == EndNode {
			hasEnd = true
			continue
		}
		targets = append(targets, r)
	}

	fallback := fmt.Sprintf("%q", terminalKeyFor(e.From))
	if !hasEnd && len(targets) > 0 {
		fallback = fmt.Sprintf("%q", targets[0])
	}

	return fmt.Sprintf(`def %s(state: WorkflowState) -> str:
    """Pick the next node after %s."""
    selected = state.get(%q) or ""
    if selected in (%s):
        return selected
    return %s`,
		deciderName(e.From), e.From, stateKeyFor(e.From), quoteList(targets)+",", fallback)
}

// conditionalMapping renders the route-name to node mapping, with the
// terminal key pointing at END.
func conditionalMapping(e generation.EdgeSpec) string {
	entries := make([]string, 0, len(e.Routes))
	hasEnd := false
	for _, r := range e.Routes {
		if r == EndNode {
			hasEnd = true
			continue
		}
		entries = append(entries, fmt.Sprintf("%q: %q", r, r))
	}
	if hasEnd {
		entries = append(entries, fmt.Sprintf("%q: END", terminalKeyFor(e.From)))
	}
	return strings.Join(entries, ", ")
}

// executionCode renders the sample run: initial state, thread config, invoke.
func executionCode(req generation.Request, design generation.DesignSpec) string {
	var fields string
	switch design.Pattern {
	case generation.SubagentsPattern:
		fields = `    "next": "",
    "instructions": "",
    "task_results": {},`
	case generation.HybridPattern:
		fields = `    "route": "",
    "next": "",
    "instructions": "",
    "task_results": {},
    "final_output": "",`
	default:
		fields = `    "route": "",
    "results": {},
    "final_output": "",`
	}

	return fmt.Sprintf(`initial_state = {
    "messages": [HumanMessage(content=%s)],
%s
}

config = {"configurable": {"thread_id": %q}}
result = graph.invoke(initial_state, config)

print("Final output:")
print(result.get("final_output") or result["messages"][-1].content)`,
		pyString(demoPrompt(req, design)), fields, "run-"+req.ID)
}

// demoPrompt picks the sample request for the execution cell.
func demoPrompt(req generation.Request, design generation.DesignSpec) string {
	text := strings.Join(strings.Fields(req.Text), " ")
	if text == "" {
		return "Demonstrate the " + design.Title + " workflow."
	}
	runes := []rune(text)
	if len(runes) > 120 {
		text = string(runes[:120])
	}
	return text
}

// pyString renders s as a double-quoted Python string literal.
func pyString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	return `"` + s + `"`
}
