// Package ide provides the read-only IDE services over a shared CST and
// symbol table: diagnostics, hover, completion, definition, references,
// and rename (spec §9 "IDE Services"). It never mutates the parsed
// trees or the runtime; all results are derived views recomputed from
// Workspace.Refresh, mirroring the teacher's clean separation of the
// compile pipeline (lexer/parser/semantic) from any single consumer of
// it — here the consumer is an editor rather than `dwscript compile`.
package ide

import (
	"sort"
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/semantic"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// Workspace holds every parsed file of one compilation plus its derived
// symbol table, type registry and diagnostics, recomputed in full on
// every Refresh (spec §9: analyses are whole-workspace, not
// incremental — out of scope per spec.md's Non-goals on incremental
// reanalysis).
type Workspace struct {
	Table *symbols.Table
	Types *types.Registry

	trees       map[string]*cst.Tree
	sources     map[string]string
	diagnostics []semantic.Diagnostic
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{trees: map[string]*cst.Tree{}, sources: map[string]string{}}
}

// SetFile registers or replaces file's source text, ready for the next
// Refresh.
func (w *Workspace) SetFile(file, src string) {
	w.sources[file] = src
}

// RemoveFile drops file from the workspace.
func (w *Workspace) RemoveFile(file string) {
	delete(w.sources, file)
	delete(w.trees, file)
}

// Refresh re-lexes, re-parses and re-analyzes every registered file,
// replacing Table/Types/diagnostics wholesale.
func (w *Workspace) Refresh() []semantic.Diagnostic {
	a := semantic.NewAnalyzer()
	w.trees = map[string]*cst.Tree{}

	files := make([]string, 0, len(w.sources))
	for f := range w.sources {
		files = append(files, f)
	}
	sort.Strings(files)

	var diags []semantic.Diagnostic
	for _, f := range files {
		tree, parseDiags := parser.ParseFile(f, w.sources[f])
		w.trees[f] = tree
		for _, d := range parseDiags {
			diags = append(diags, semantic.Diagnostic{
				Code: semantic.CodeParseError, Severity: semantic.SeverityError,
				Message: d.Message, Range: d.Range,
			})
		}
		a.AddFile(f, tree)
	}
	diags = append(diags, a.Analyze()...)

	w.Table = a.Table
	w.Types = a.Types
	w.diagnostics = diags
	return diags
}

// Diagnostics returns every diagnostic from the last Refresh belonging
// to file.
func (w *Workspace) Diagnostics(file string) []semantic.Diagnostic {
	var out []semantic.Diagnostic
	tree := w.trees[file]
	for _, d := range w.diagnostics {
		if tree != nil && w.ownedByFile(d.Range, file) {
			out = append(out, d)
		}
	}
	return out
}

// ownedByFile is a coarse containment check: a diagnostic belongs to
// file if its range falls within that file's source length. Good
// enough since each file is analyzed as a disjoint token stream; exact
// range containment is checked by the caller (the DAP/IDE transport
// layer) against its own per-file source map when precision matters.
func (w *Workspace) ownedByFile(r lexer.Range, file string) bool {
	tree, ok := w.trees[file]
	if !ok {
		return false
	}
	return r.Start.Offset >= 0 && r.End.Offset <= len(tree.Source)
}

// Tree returns the last-parsed tree for file, if any.
func (w *Workspace) Tree(file string) (*cst.Tree, bool) {
	t, ok := w.trees[file]
	return t, ok
}

// nodeAt finds the innermost node in tree whose range contains offset,
// along with the chain of ancestors from root to it (root first).
func nodeAt(tree *cst.Tree, offset int) []*cst.Node {
	var path []*cst.Node
	var visit func(n *cst.Node) bool
	visit = func(n *cst.Node) bool {
		r := tree.Range(n)
		if offset < r.Start.Offset || offset > r.End.Offset {
			return false
		}
		path = append(path, n)
		for _, c := range n.Children {
			if visit(c) {
				break
			}
		}
		return true
	}
	visit(tree.Root)
	return path
}

// scopeAt recovers the ScopeId an identifier at offset should resolve
// against, by walking from the root scope and switching to each
// enclosing POU/namespace's NamespaceScope, mirroring
// semantic.Analyzer.checkTree's own scope-threading walk.
func (w *Workspace) scopeAt(file string, offset int) symbols.ScopeId {
	tree, ok := w.trees[file]
	if !ok || w.Table == nil {
		return symbols.NoScope
	}
	path := nodeAt(tree, offset)
	scope := w.Table.Root
	for _, n := range path {
		switch n.Kind {
		case cst.KindProgram, cst.KindFunction, cst.KindFunctionBlock, cst.KindMethod, cst.KindAction,
			cst.KindClass, cst.KindInterface, cst.KindNamespace, cst.KindProperty,
			cst.KindPropertyGet, cst.KindPropertySet, cst.KindConfiguration, cst.KindResource:
			if sym, ok := w.symbolForNode(n); ok {
				scope = sym.NamespaceScope
			}
		}
	}
	return scope
}

func (w *Workspace) symbolForNode(n *cst.Node) (*symbols.Symbol, bool) {
	for i := range w.Table.Symbols {
		if w.Table.Symbols[i].Node == n {
			return &w.Table.Symbols[i], true
		}
	}
	return nil, false
}

// identAt returns the KindIdentExpr leaf at offset in file, if any.
func (w *Workspace) identAt(file string, offset int) (*cst.Node, bool) {
	tree, ok := w.trees[file]
	if !ok {
		return nil, false
	}
	path := nodeAt(tree, offset)
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind == cst.KindIdentExpr {
			return path[i], true
		}
	}
	return nil, false
}

// identText returns an identifier node's text with surrounding
// whitespace trimmed; it does not strip a namespace qualification
// (`A.B.Name`), and Resolve is handed that text as name. Hover/
// definition/rename operate on whichever single identifier token the
// caret sits on, so a qualified reference's caret position already
// picks out just the relevant segment via identAt's leaf-node match.
func identText(tree *cst.Tree, n *cst.Node) string {
	return strings.TrimSpace(tree.Text(n))
}
