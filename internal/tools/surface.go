package tools

import (
	"fmt"
	"strings"
)

// Descriptor documents one entry point of the tool surface for the program
// generator. The Name must match the function injected into the sandbox.
type Descriptor struct {
	Name        string
	Signature   string
	Description string
}

// Surface enumerates the closed tool surface, in the order it is presented
// to the generator. Adding an entry here requires a matching export in the
// sandbox symbol table.
func Surface() []Descriptor {
	return []Descriptor{
		{
			Name:        "SearchText",
			Signature:   "SearchText(query string, maxResults int) []Match",
			Description: "Regex/substring search over source lines and notebook code.",
		},
		{
			Name:        "SearchImports",
			Signature:   "SearchImports(module string) []Match",
			Description: "Find import statements pulling in a module (scripts and notebooks).",
		},
		{
			Name:        "SearchFunctions",
			Signature:   "SearchFunctions(name string) []Match",
			Description: "Find function and method definitions by name substring.",
		},
		{
			Name:        "SemanticSearch",
			Signature:   "SemanticSearch(query string, maxResults int) []Match",
			Description: "Token-overlap ranked search; Score field is relevance in [0,1].",
		},
		{
			Name:        "SearchNotebookCells",
			Signature:   "SearchNotebookCells(query string) []Match",
			Description: "Find notebook code cells containing the query.",
		},
		{
			Name:        "SearchNotebookOutputs",
			Signature:   "SearchNotebookOutputs(query string) []Match",
			Description: "Search captured cell outputs; printed metrics live here.",
		},
		{
			Name:        "FindArtifact",
			Signature:   "FindArtifact(nameOrExt string) []Match",
			Description: "Look up saved binary artifacts by name or extension.",
		},
		{
			Name:        "CheckArtifactUsage",
			Signature:   "CheckArtifactUsage(artifactName string) []Match",
			Description: "Find code that loads, saves, or references an artifact.",
		},
	}
}

// PromptSurface renders the tool surface as the generator's context block,
// including the Match shape the tools return.
func PromptSurface() string {
	var sb strings.Builder
	sb.WriteString("type Match struct { Source string; Line int; CellNumber int; Kind string; Text string; Score float64 }\n\n")
	for _, d := range Surface() {
		fmt.Fprintf(&sb, "// %s\nfunc %s\n\n", d.Description, d.Signature)
	}
	return sb.String()
}
