package tools

import "strings"

// SearchNotebookCells finds notebook code cells whose source contains query
// (case-insensitive substring).
func (b *Binding) SearchNotebookCells(query string) []Match {
	if query == "" {
		return nil
	}
	needle := strings.ToLower(query)

	var matches []Match
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			if strings.Contains(strings.ToLower(cell.Source), needle) {
				matches = append(matches, Match{
					Source:     nb.Path,
					CellNumber: cell.Number,
					Kind:       "notebook_code",
					Text:       firstMatchingLine(cell.Source, needle),
				})
			}
		}
	}
	return matches
}

// SearchNotebookOutputs finds captured cell outputs containing query.
// Metric values reported in a model card usually live here, printed or
// displayed during evaluation.
func (b *Binding) SearchNotebookOutputs(query string) []Match {
	if query == "" {
		return nil
	}
	needle := strings.ToLower(query)

	var matches []Match
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			for _, out := range cell.Outputs {
				if strings.Contains(strings.ToLower(out), needle) {
					matches = append(matches, Match{
						Source:     nb.Path,
						CellNumber: cell.Number,
						Kind:       "notebook_output",
						Text:       strings.TrimSpace(out),
					})
				}
			}
		}
	}
	return matches
}

func firstMatchingLine(source, lowerNeedle string) string {
	for _, line := range strings.Split(source, "\n") {
		if strings.Contains(strings.ToLower(line), lowerNeedle) {
			return strings.TrimSpace(line)
		}
	}
	return firstLine(source)
}
