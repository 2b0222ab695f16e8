package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notebook is a parsed Jupyter notebook: code cells with their captured
// outputs. Markdown cells are dropped; claims are checked against code and
// results, not prose.
type Notebook struct {
	Path  string
	Cells []Cell
}

// Cell is one code cell. Number is the cell's position among code cells,
// 1-based, which is how evidence cites notebook locations.
type Cell struct {
	Number  int
	Source  string
	Outputs []string
}

// rawNotebook mirrors just enough of the .ipynb JSON schema (nbformat 4).
type rawNotebook struct {
	Cells []rawCell `json:"cells"`
}

type rawCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Outputs  []rawOutput     `json:"outputs"`
}

type rawOutput struct {
	OutputType string                     `json:"output_type"`
	Text       json.RawMessage            `json:"text"`
	Data       map[string]json.RawMessage `json:"data"`
	EValue     string                     `json:"evalue"`
}

func parseNotebook(path string, data []byte) (Notebook, error) {
	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return Notebook{}, fmt.Errorf("parse notebook %s: %w", path, err)
	}

	nb := Notebook{Path: path}
	num := 0
	for _, cell := range raw.Cells {
		if cell.CellType != "code" {
			continue
		}
		num++
		c := Cell{Number: num, Source: joinLines(cell.Source)}
		for _, out := range cell.Outputs {
			switch out.OutputType {
			case "stream":
				if text := joinLines(out.Text); text != "" {
					c.Outputs = append(c.Outputs, text)
				}
			case "execute_result", "display_data":
				if plain, ok := out.Data["text/plain"]; ok {
					if text := joinLines(plain); text != "" {
						c.Outputs = append(c.Outputs, text)
					}
				}
			case "error":
				if out.EValue != "" {
					c.Outputs = append(c.Outputs, out.EValue)
				}
			}
		}
		nb.Cells = append(nb.Cells, c)
	}
	return nb, nil
}

// joinLines handles the nbformat quirk that source/text may be either a
// single string or a list of line strings.
func joinLines(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}
