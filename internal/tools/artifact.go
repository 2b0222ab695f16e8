package tools

import (
	"fmt"
	"strings"
)

// FindArtifact looks up binary artifacts by name substring or extension
// (with or without the dot). Matches report name, kind, and size only;
// artifact bytes are never exposed to the sandbox.
func (b *Binding) FindArtifact(nameOrExt string) []Match {
	if nameOrExt == "" {
		return nil
	}
	needle := strings.ToLower(strings.TrimPrefix(nameOrExt, "."))

	var matches []Match
	for _, art := range b.snap.Artifacts {
		if strings.Contains(strings.ToLower(art.Name), needle) || art.Kind == needle {
			matches = append(matches, Match{
				Source: art.Path,
				Kind:   "artifact",
				Text:   fmt.Sprintf("%s (%s, %d bytes)", art.Name, art.Kind, art.Size),
			})
		}
	}
	return matches
}

// CheckArtifactUsage finds source and notebook references to an artifact
// filename: load/save calls, path literals, config entries.
func (b *Binding) CheckArtifactUsage(artifactName string) []Match {
	if artifactName == "" {
		return nil
	}
	needle := strings.ToLower(artifactName)

	var matches []Match
	for _, f := range b.snap.Files {
		for i, line := range f.Lines {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, Match{
					Source: f.Path,
					Line:   i + 1,
					Kind:   "artifact_usage",
					Text:   strings.TrimSpace(line),
				})
			}
		}
	}
	for _, nb := range b.snap.Notebooks {
		for _, cell := range nb.Cells {
			if strings.Contains(strings.ToLower(cell.Source), needle) {
				matches = append(matches, Match{
					Source:     nb.Path,
					CellNumber: cell.Number,
					Kind:       "artifact_usage",
					Text:       firstMatchingLine(cell.Source, needle),
				})
			}
		}
	}
	return matches
}
