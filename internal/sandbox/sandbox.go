// Package sandbox runs generated verification programs inside a yaegi
// interpreter with a closed symbol table. The only names a program can
// resolve are the injected search tools, language primitives, and a short
// whitelist of pure stdlib packages; imports of anything else, filesystem
// or network access, and subprocess spawning all fail closed before or
// during evaluation. Each execution gets a fresh interpreter that is
// discarded afterwards.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"cardaudit/internal/claims"
	"cardaudit/internal/logging"
	"cardaudit/internal/tools"
)

// allowedImports is the full set of packages a verification program may
// import. Everything else is rejected before evaluation; the interpreter
// loads only these symbols, so even a bypassed check cannot resolve os,
// net, os/exec, syscall, or unsafe.
var allowedImports = map[string]bool{
	"strings": true,
	"strconv": true,
	"sort":    true,
}

// Runner executes verification programs with a per-claim timeout.
type Runner struct {
	timeout time.Duration
}

// New creates a Runner. timeout bounds each execution independently.
func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Run executes program against binding and returns exactly one
// ExecutionResult. Failures of any kind (forbidden import, eval error,
// panic, timeout, malformed return) are captured in the result, never
// propagated.
func (r *Runner) Run(ctx context.Context, claimID string, program claims.VerificationProgram, binding *tools.Binding) claims.ExecutionResult {
	log := logging.Named("sandbox")

	if err := validateImports(string(program)); err != nil {
		log.Warn("program rejected", zap.String("claim_id", claimID), zap.Error(err))
		return claims.FailedResult(claimID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.eval(ctx, string(program), binding)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("execution exceeded %v timeout: %w", r.timeout, err)
		}
		log.Warn("execution failed", zap.String("claim_id", claimID), zap.Error(err))
		return claims.FailedResult(claimID, err)
	}

	result, err := coerceResult(claimID, raw)
	if err != nil {
		return claims.FailedResult(claimID, err)
	}
	return result
}

// eval builds a fresh restricted interpreter, loads the program, and calls
// its Verify function. Yaegi panics on some malformed programs; those are
// recovered into errors.
func (r *Runner) eval(ctx context.Context, program string, binding *tools.Binding) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("program panicked: %v", rec)
		}
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(restrictedSymbols()); err != nil {
		return nil, fmt.Errorf("load restricted stdlib: %w", err)
	}
	if err := i.Use(toolExports(binding)); err != nil {
		return nil, fmt.Errorf("bind tool surface: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, wrapProgram(program)); err != nil {
		return nil, fmt.Errorf("program did not compile: %w", err)
	}
	res, err := i.EvalWithContext(ctx, "main.Verify()")
	if err != nil {
		return nil, fmt.Errorf("Verify() failed: %w", err)
	}
	if !res.IsValid() {
		return nil, fmt.Errorf("Verify() returned no value")
	}
	return res.Interface(), nil
}

// restrictedSymbols filters yaegi's stdlib table down to the whitelist.
func restrictedSymbols() interp.Exports {
	exports := interp.Exports{}
	for pkg := range allowedImports {
		key := pkg + "/" + pkg
		if syms, ok := stdlib.Symbols[key]; ok {
			exports[key] = syms
		}
	}
	return exports
}

// toolExports exposes the binding's methods as bare names via the wrapped
// dot-import. The binding closes over the shared read-only snapshot; each
// execution gets its own binding instance.
func toolExports(binding *tools.Binding) interp.Exports {
	return interp.Exports{
		"verifytools/verifytools": tools.NewRegistry(binding).Exports(),
	}
}

// wrapProgram strips any package clause from the program and wraps it in
// package main with the tool surface dot-imported.
func wrapProgram(program string) string {
	var body []string
	for _, line := range strings.Split(program, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "package ") {
			continue
		}
		body = append(body, line)
	}
	return "package main\n\nimport . \"verifytools\"\n\n" + strings.Join(body, "\n")
}

// validateImports rejects any import outside the whitelist. Parsing follows
// the two syntactic forms (single line and block); anything unparseable in
// an import position is rejected rather than ignored.
func validateImports(program string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(program, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			if pkg, ok := importPath(trimmed); ok && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "import"))
			if pkg, ok := importPath(rest); ok && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s (allowed: strings, strconv, sort)",
			strings.Join(forbidden, ", "))
	}
	return nil
}

// importPath extracts the quoted path from one import spec, tolerating an
// alias or dot prefix.
func importPath(spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.HasPrefix(spec, "//") {
		return "", false
	}
	start := strings.IndexByte(spec, '"')
	end := strings.LastIndexByte(spec, '"')
	if start < 0 || end <= start {
		// An import spec without a quoted path is malformed; treat the
		// whole spec as the offending path so it fails closed.
		return spec, true
	}
	return spec[start+1 : end], true
}
