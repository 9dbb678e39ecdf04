package ide

import (
	"sort"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/symbols"
)

// symbolAt resolves the identifier at (file, offset) to its SymbolId,
// the shared first step of References and Rename.
func (w *Workspace) symbolAt(file string, offset int) (symbols.SymbolId, string, bool) {
	ident, ok := w.identAt(file, offset)
	if !ok {
		return 0, "", false
	}
	tree, _ := w.Tree(file)
	name := identText(tree, ident)
	scope := w.scopeAt(file, offset)
	id, err := w.Table.Resolve(scope, name)
	if err != nil {
		return 0, "", false
	}
	return id, name, true
}

// References finds every occurrence of the identifier at (file, offset)
// across the whole workspace: its own declaration plus every use that
// resolves to the same symbol (spec §9 "references spans every file
// currently indexed").
func (w *Workspace) References(file string, offset int) []Location {
	target, name, ok := w.symbolAt(file, offset)
	if !ok {
		return nil
	}
	sym := w.Table.Sym(target)

	var out []Location
	if sym.Node != nil {
		if declFile, declTree, ok := w.treeOwning(sym.Node); ok {
			out = append(out, Location{File: declFile, Range: declTree.Range(sym.Node)})
		}
	}

	files := make([]string, 0, len(w.trees))
	for f := range w.trees {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		out = append(out, w.usesOf(f, target, name)...)
	}
	return out
}

// usesOf walks file's tree tracking the enclosing scope (mirroring
// scopeAt's own walk), collecting every KindIdentExpr whose text
// case-insensitively matches name and resolves to target.
func (w *Workspace) usesOf(file string, target symbols.SymbolId, name string) []Location {
	tree, ok := w.trees[file]
	if !ok {
		return nil
	}
	var out []Location
	var walk func(scope symbols.ScopeId, n *cst.Node)
	walk = func(scope symbols.ScopeId, n *cst.Node) {
		childScope := scope
		switch n.Kind {
		case cst.KindProgram, cst.KindFunction, cst.KindFunctionBlock, cst.KindMethod, cst.KindAction,
			cst.KindClass, cst.KindInterface, cst.KindNamespace, cst.KindProperty,
			cst.KindPropertyGet, cst.KindPropertySet, cst.KindConfiguration, cst.KindResource:
			if sym, ok := w.symbolForNode(n); ok {
				childScope = sym.NamespaceScope
			}
		case cst.KindIdentExpr:
			text := identText(tree, n)
			if equalFold(text, name) {
				if id, err := w.Table.Resolve(scope, text); err == nil && id == target {
					out = append(out, Location{File: file, Range: tree.Range(n)})
				}
			}
		}
		for _, c := range n.Children {
			walk(childScope, c)
		}
	}
	walk(w.Table.Root, tree.Root)
	return out
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
