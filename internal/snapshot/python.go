package snapshot

import (
	"context"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// FunctionDef is a function or method definition found in a source file.
type FunctionDef struct {
	File      string
	Name      string
	Line      int // 1-based
	Signature string
	Class     string // enclosing class, if any
}

// ImportRef is an import statement found in a source file.
type ImportRef struct {
	File   string
	Module string
	Line   int // 1-based
	Text   string
}

// parseCache memoizes per-file tree-sitter results. Parses are lazy: the
// first tool query that needs a file's AST pays for it, later queries hit
// the cache.
type parseCache struct {
	mu        sync.Mutex
	parser    *sitter.Parser
	functions *gocache.Cache
	imports   *gocache.Cache
}

func newParseCache() *parseCache {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &parseCache{
		parser:    parser,
		functions: gocache.New(gocache.NoExpiration, 0),
		imports:   gocache.New(gocache.NoExpiration, 0),
	}
}

// PythonFunctions returns every function and method definition in f.
// Non-Python files yield a line-based fallback scan.
func (s *Snapshot) PythonFunctions(f SourceFile) []FunctionDef {
	if !isPython(f.Path) {
		return fallbackFunctions(f)
	}
	s.parse.mu.Lock()
	defer s.parse.mu.Unlock()

	if cached, ok := s.parse.functions.Get(f.Path); ok {
		return cached.([]FunctionDef)
	}
	defs := s.parse.parseFunctions(f)
	s.parse.functions.Set(f.Path, defs, gocache.NoExpiration)
	return defs
}

// PythonImports returns every import statement in f. Non-Python files yield
// a line-based fallback scan.
func (s *Snapshot) PythonImports(f SourceFile) []ImportRef {
	if !isPython(f.Path) {
		return fallbackImports(f)
	}
	s.parse.mu.Lock()
	defer s.parse.mu.Unlock()

	if cached, ok := s.parse.imports.Get(f.Path); ok {
		return cached.([]ImportRef)
	}
	refs := s.parse.parseImports(f)
	s.parse.imports.Set(f.Path, refs, gocache.NoExpiration)
	return refs
}

func isPython(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".pyw")
}

func (pc *parseCache) parseFunctions(f SourceFile) []FunctionDef {
	content := []byte(f.Content)
	tree, err := pc.parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return fallbackFunctions(f)
	}
	defer tree.Close()

	var defs []FunctionDef
	var walk func(node *sitter.Node, class string)
	walk = func(node *sitter.Node, class string) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				name := child.ChildByFieldName("name")
				params := child.ChildByFieldName("parameters")
				if name == nil {
					continue
				}
				def := FunctionDef{
					File:  f.Path,
					Name:  name.Content(content),
					Line:  int(child.StartPoint().Row) + 1,
					Class: class,
				}
				if params != nil {
					def.Signature = def.Name + params.Content(content)
				} else {
					def.Signature = def.Name + "()"
				}
				defs = append(defs, def)
				walk(child, class)
			case "class_definition":
				name := child.ChildByFieldName("name")
				className := class
				if name != nil {
					className = name.Content(content)
				}
				walk(child, className)
			case "decorated_definition":
				walk(child, class)
			default:
				walk(child, class)
			}
		}
	}
	walk(tree.RootNode(), "")
	return defs
}

func (pc *parseCache) parseImports(f SourceFile) []ImportRef {
	content := []byte(f.Content)
	tree, err := pc.parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return fallbackImports(f)
	}
	defer tree.Close()

	var refs []ImportRef
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "import_statement", "import_from_statement":
				text := child.Content(content)
				refs = append(refs, ImportRef{
					File:   f.Path,
					Module: importModule(text),
					Line:   int(child.StartPoint().Row) + 1,
					Text:   text,
				})
			default:
				walk(child)
			}
		}
	}
	walk(tree.RootNode())
	return refs
}

// importModule extracts the module path from an import statement's text.
func importModule(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	if fields[0] == "from" {
		return fields[1]
	}
	// "import a.b as c" or "import a, b"
	return strings.TrimSuffix(fields[1], ",")
}

// fallbackFunctions scans for def-like lines in non-Python sources.
func fallbackFunctions(f SourceFile) []FunctionDef {
	var defs []FunctionDef
	for i, line := range f.Lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "function ") {
			name := strings.TrimPrefix(strings.TrimPrefix(trimmed, "def "), "function ")
			if idx := strings.Index(name, "("); idx > 0 {
				name = name[:idx]
			}
			defs = append(defs, FunctionDef{
				File: f.Path, Name: strings.TrimSpace(name), Line: i + 1, Signature: trimmed,
			})
		}
	}
	return defs
}

// fallbackImports scans for import-like lines in non-Python sources.
func fallbackImports(f SourceFile) []ImportRef {
	var refs []ImportRef
	for i, line := range f.Lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") ||
			strings.HasPrefix(trimmed, "library(") || strings.HasPrefix(trimmed, "require(") {
			refs = append(refs, ImportRef{
				File:   f.Path,
				Module: importModule(trimmed),
				Line:   i + 1,
				Text:   trimmed,
			})
		}
	}
	return refs
}
