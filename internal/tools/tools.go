// Package tools implements the fixed, read-only search surface a sandboxed
// verification program may call. Every tool is a pure function of
// (snapshot, query); tools never touch the disk, the network, or mutable
// state, so all workers share one snapshot without locking.
package tools

import (
	"errors"

	"cardaudit/internal/snapshot"
)

// ErrEmptyQuery is returned by tools invoked without a query.
var ErrEmptyQuery = errors.New("query must not be empty")

// Match is a single search hit. CellNumber is zero for non-notebook hits;
// Score is only set by ranked searches.
type Match struct {
	Source     string  `json:"source"`
	Line       int     `json:"line,omitempty"`
	CellNumber int     `json:"cell_number,omitempty"`
	Kind       string  `json:"kind"`
	Text       string  `json:"text"`
	Score      float64 `json:"score,omitempty"`
}

// Binding exposes the tool surface over one snapshot. Each work unit gets
// its own Binding so no two sandboxed programs share state; the snapshot
// behind it is immutable.
type Binding struct {
	snap *snapshot.Snapshot
}

// NewBinding creates a fresh tool binding over snap.
func NewBinding(snap *snapshot.Snapshot) *Binding {
	return &Binding{snap: snap}
}

const defaultMaxResults = 20

func capResults(n int) int {
	if n <= 0 || n > 200 {
		return defaultMaxResults
	}
	return n
}
