package dap

import (
	"sort"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/semantic"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// compileResult is one `launch`/`attach`/`stReload` compilation: the
// linked runtime.Program plus every diagnostic produced along the way,
// mirroring the "Compile: accept an ordered list of {path, text}
// sources -> runtime or a list of typed diagnostics" contract of
// spec.md §6. Grounded on cmd/stc/cmd/build.go's compileProject, the
// same pipeline reused here over a path-to-text source map, which
// readSources (handlers_lifecycle.go) fills by reading the files the
// client names from disk.
type compileResult struct {
	Table *symbols.Table
	Types *types.Registry
	Trees map[string]*cst.Tree
	Prog  *runtime.Program
	Diags []semantic.Diagnostic
}

// HasErrors reports whether any diagnostic is error-severity (spec §7
// "compilation completes and produces a runtime when no error-severity
// diagnostic exists").
func (r *compileResult) HasErrors() bool {
	for _, d := range r.Diags {
		if d.Severity == semantic.SeverityError {
			return true
		}
	}
	return false
}

// compileSources lexes, parses, and semantically analyzes every file in
// sources (path -> text), in deterministic (sorted path) order so
// diagnostics and USING resolution never depend on map iteration order,
// then links a runtime.Program when no error-severity diagnostic was
// produced.
func compileSources(sources map[string]string) *compileResult {
	a := semantic.NewAnalyzer()
	trees := map[string]*cst.Tree{}

	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	res := &compileResult{Table: a.Table, Types: a.Types, Trees: trees}
	for _, p := range paths {
		tree, parseDiags := parser.ParseFile(p, sources[p])
		trees[p] = tree
		for _, d := range parseDiags {
			res.Diags = append(res.Diags, semantic.Diagnostic{
				Code: semantic.CodeParseError, Severity: semantic.SeverityError,
				Message: d.Message, Range: d.Range,
			})
		}
		a.AddFile(p, tree)
	}
	res.Diags = append(res.Diags, a.Analyze()...)

	if !res.HasErrors() {
		res.Prog = runtime.Build(a.Table, a.Types, trees)
	}
	return res
}
