package ide

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// Location is a file/range pair, the unit every positional IDE result
// is expressed in (mirrors a DAP Source plus a Range, kept dependency-
// free here since the dap package owns wire-format translation).
type Location struct {
	File  string
	Range lexer.Range
}

// DefinitionAt resolves the identifier at (file, offset) and returns
// the range of its declaring node, if the declaration's own tree is
// still in the workspace.
func (w *Workspace) DefinitionAt(file string, offset int) (Location, bool) {
	ident, ok := w.identAt(file, offset)
	if !ok {
		return Location{}, false
	}
	tree, _ := w.Tree(file)
	name := identText(tree, ident)
	scope := w.scopeAt(file, offset)

	id, err := w.Table.Resolve(scope, name)
	if err != nil {
		return Location{}, false
	}
	sym := w.Table.Sym(id)
	if sym.Node == nil {
		return Location{}, false
	}
	declFile, declTree, ok := w.treeOwning(sym.Node)
	if !ok {
		return Location{}, false
	}
	return Location{File: declFile, Range: declTree.Range(sym.Node)}, true
}

// treeOwning finds which registered file's tree contains n.
func (w *Workspace) treeOwning(n *cst.Node) (string, *cst.Tree, bool) {
	for file, tree := range w.trees {
		if containsNode(tree.Root, n) {
			return file, tree, true
		}
	}
	return "", nil, false
}

func containsNode(n, target *cst.Node) bool {
	if n == target {
		return true
	}
	for _, c := range n.Children {
		if containsNode(c, target) {
			return true
		}
	}
	return false
}
