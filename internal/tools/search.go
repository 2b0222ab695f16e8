package tools

import (
	"regexp"
	"sort"
	"strings"
)

// SearchText finds lines containing query in source files and notebook code
// cells. The query is treated as a regular expression when it compiles,
// otherwise as a literal substring (case-insensitive either way).
func (b *Binding) SearchText(query string, maxResults int) []Match {
	if query == "" {
		return nil
	}
	match := lineMatcher(query)
	limit := capResults(maxResults)

	var matches []Match
	for _, f := range b.snap.Files {
		for i, line := range f.Lines {
			if len(matches) >= limit {
				return matches
			}
			if match(line) {
				matches = append(matches, Match{
					Source: f.Path,
					Line:   i + 1,
					Kind:   "code_line",
					Text:   strings.TrimSpace(line),
				})
			}
		}
	}
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			if len(matches) >= limit {
				return matches
			}
			for _, line := range strings.Split(cell.Source, "\n") {
				if match(line) {
					matches = append(matches, Match{
						Source:     nb.Path,
						CellNumber: cell.Number,
						Kind:       "notebook_code",
						Text:       strings.TrimSpace(line),
					})
					break
				}
			}
		}
	}
	return matches
}

// SearchImports finds import statements whose module path contains module.
// Notebook code cells are scanned too; models are often trained entirely in
// notebooks.
func (b *Binding) SearchImports(module string) []Match {
	if module == "" {
		return nil
	}
	needle := strings.ToLower(module)

	var matches []Match
	for _, f := range b.snap.Files {
		for _, ref := range b.snap.PythonImports(f) {
			if strings.Contains(strings.ToLower(ref.Module), needle) ||
				strings.Contains(strings.ToLower(ref.Text), needle) {
				matches = append(matches, Match{
					Source: ref.File,
					Line:   ref.Line,
					Kind:   "import",
					Text:   ref.Text,
				})
			}
		}
	}
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			for _, line := range strings.Split(cell.Source, "\n") {
				trimmed := strings.TrimSpace(line)
				if !strings.HasPrefix(trimmed, "import ") && !strings.HasPrefix(trimmed, "from ") {
					continue
				}
				if strings.Contains(strings.ToLower(trimmed), needle) {
					matches = append(matches, Match{
						Source:     nb.Path,
						CellNumber: cell.Number,
						Kind:       "import",
						Text:       trimmed,
					})
				}
			}
		}
	}
	return matches
}

// SearchFunctions finds function and method definitions whose name contains
// name (case-insensitive).
func (b *Binding) SearchFunctions(name string) []Match {
	if name == "" {
		return nil
	}
	needle := strings.ToLower(name)

	var matches []Match
	for _, f := range b.snap.Files {
		for _, def := range b.snap.PythonFunctions(f) {
			if strings.Contains(strings.ToLower(def.Name), needle) {
				text := def.Signature
				if def.Class != "" {
					text = def.Class + "." + text
				}
				matches = append(matches, Match{
					Source: def.File,
					Line:   def.Line,
					Kind:   "function_definition",
					Text:   text,
				})
			}
		}
	}
	return matches
}

// SemanticSearch ranks source lines by token overlap with the query and
// returns the top maxResults with scores in [0,1]. It is a cheap stand-in
// for embedding search that needs no provider call and stays deterministic.
func (b *Binding) SemanticSearch(query string, maxResults int) []Match {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	limit := capResults(maxResults)

	var matches []Match
	score := func(text string) float64 {
		tokens := tokenize(text)
		if len(tokens) == 0 {
			return 0
		}
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			seen[t] = true
		}
		hits := 0
		for _, q := range queryTokens {
			if seen[q] {
				hits++
			}
		}
		return float64(hits) / float64(len(queryTokens))
	}

	for _, f := range b.snap.Files {
		for i, line := range f.Lines {
			if s := score(line); s > 0 {
				matches = append(matches, Match{
					Source: f.Path,
					Line:   i + 1,
					Kind:   "code_line",
					Text:   strings.TrimSpace(line),
					Score:  s,
				})
			}
		}
	}
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			if s := score(cell.Source); s > 0 {
				matches = append(matches, Match{
					Source:     nb.Path,
					CellNumber: cell.Number,
					Kind:       "notebook_code",
					Text:       firstLine(cell.Source),
					Score:      s,
				})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// lineMatcher compiles query as a case-insensitive regexp, falling back to a
// literal substring match when it does not compile.
func lineMatcher(query string) func(string) bool {
	if re, err := regexp.Compile("(?i)" + query); err == nil {
		return re.MatchString
	}
	needle := strings.ToLower(query)
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), needle)
	}
}

var tokenSplit = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func tokenize(s string) []string {
	var tokens []string
	for _, t := range tokenSplit.Split(strings.ToLower(s), -1) {
		if len(t) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
