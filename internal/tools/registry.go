package tools

import (
	"reflect"
	"sync"
)

// Registry maps tool names to implementations bound to one snapshot. The
// surface is fixed at construction; Register exists so tests can stub a
// single tool without rebuilding the set.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]reflect.Value
}

// NewRegistry binds the full tool surface to b.
func NewRegistry(b *Binding) *Registry {
	r := &Registry{tools: make(map[string]reflect.Value)}
	r.Register("SearchText", b.SearchText)
	r.Register("SearchImports", b.SearchImports)
	r.Register("SearchFunctions", b.SearchFunctions)
	r.Register("SemanticSearch", b.SemanticSearch)
	r.Register("SearchNotebookCells", b.SearchNotebookCells)
	r.Register("SearchNotebookOutputs", b.SearchNotebookOutputs)
	r.Register("FindArtifact", b.FindArtifact)
	r.Register("CheckArtifactUsage", b.CheckArtifactUsage)
	return r
}

// Register adds or replaces a tool. fn must be a func.
func (r *Registry) Register(name string, fn any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = reflect.ValueOf(fn)
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tools[name]
	return fn, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Exports returns the symbol table injected into the sandbox: every tool
// plus the Match result type.
func (r *Registry) Exports() map[string]reflect.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]reflect.Value, len(r.tools)+1)
	for name, fn := range r.tools {
		out[name] = fn
	}
	out["Match"] = reflect.ValueOf((*Match)(nil))
	return out
}
