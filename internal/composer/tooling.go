package composer

import (
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// coreImports is the consolidated import block every composed notebook
// carries. The langgraph line is what the import validators look for.
var coreImports = []string{
	"import os",
	"import json",
	"from typing import Dict, List, Literal",
	"from typing_extensions import TypedDict",
	"from langgraph.graph import StateGraph, MessagesState, START, END",
	"from langgraph.checkpoint.memory import MemorySaver",
	"from langchain_openai import ChatOpenAI",
	"from langchain_core.messages import HumanMessage, SystemMessage",
	"from pydantic import BaseModel, Field",
}

// toolCue maps evidence terms to the tool they imply.
type toolCue struct {
	term string
	tool generation.ToolSpec
}

var toolCues = []toolCue{
	{term: "search", tool: generation.ToolSpec{
		Name:       "web_search",
		Purpose:    "Look up supporting information on the web",
		Dependency: "duckduckgo-search",
	}},
	{term: "research", tool: generation.ToolSpec{
		Name:       "web_search",
		Purpose:    "Look up supporting information on the web",
		Dependency: "duckduckgo-search",
	}},
	{term: "parse", tool: generation.ToolSpec{
		Name:    "parse_json",
		Purpose: "Parse JSON payloads into dictionaries",
	}},
	{term: "json", tool: generation.ToolSpec{
		Name:    "parse_json",
		Purpose: "Parse JSON payloads into dictionaries",
	}},
	{term: "file", tool: generation.ToolSpec{
		Name:    "read_text_file",
		Purpose: "Read a local text file into the workflow",
	}},
	{term: "summarize", tool: generation.ToolSpec{
		Name:    "word_count",
		Purpose: "Measure text length to size summaries",
	}},
}

// PlanTools derives the tool list and the import block from the design and
// the constraints. The import block always includes the langgraph lines the
// composed graph code depends on.
func PlanTools(design generation.DesignSpec, constraints []generation.Constraint) generation.ToolPlan {
	evidence := make([]string, 0, len(design.Nodes)+len(constraints))
	for _, n := range design.Nodes {
		evidence = append(evidence, strings.ToLower(n.Name+" "+n.Purpose))
	}
	for _, c := range constraints {
		evidence = append(evidence, strings.ToLower(c.Value))
	}

	var tools []generation.ToolSpec
	seen := map[string]bool{}
	for _, cue := range toolCues {
		if seen[cue.tool.Name] {
			continue
		}
		for _, e := range evidence {
			if strings.Contains(e, cue.term) {
				tools = append(tools, cue.tool)
				seen[cue.tool.Name] = true
				break
			}
		}
	}

	imports := make([]string, len(coreImports))
	copy(imports, coreImports)

	return generation.ToolPlan{
		Tools:   tools,
		Imports: imports,
	}
}
