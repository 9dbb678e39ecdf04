package dap

import (
	"fmt"
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/symbols"
)

// currentScope resolves the symbol-resolution scope to evaluate an
// expression in: the namespace scope of whichever POU owns the live
// call stack's top frame, or the table root when nothing is running
// (spec §4.9 "evaluate resolves identifiers against the paused
// location's owning POU"; the runtime itself only ever tracks one live
// call stack, so unlike frameId-scoped stack navigation in other
// debuggers, value reads always reflect the single top-of-stack frame).
func (s *session) currentScope() symbols.ScopeId {
	f := s.prog.Storage.TopFrame()
	if f == nil {
		return s.table.Root
	}
	if id, err := s.table.Resolve(s.table.Root, f.PouName); err == nil {
		return s.table.Sym(id).NamespaceScope
	}
	return s.table.Root
}

// evalSource parses and evaluates a bare expression against the
// session's live storage, the shared entry point for setExpression,
// setVariable's value text, I/O writes and stVarWrite (mirrors
// internal/debug/expr.go's evalConditionSource, duplicated since that
// helper is unexported and debug.Control's own API only exposes it
// indirectly through breakpoint/watch evaluation).
func (s *session) evalSource(src string) (runtime.Value, error) {
	tree, diags := parser.ParseStandaloneExpr(src)
	if len(diags) > 0 {
		return runtime.Value{}, fmt.Errorf("parse error: %s", diags[0].Message)
	}
	return s.evaluator().EvalExpr(s.currentScope(), tree, tree.Root)
}

// disallowedCall scans src for a call to a name not present in
// allowedBuiltins, case-insensitively, returning that name if found
// (spec's Open Question decision, SPEC_FULL.md §5: "evaluate rejects
// any call expression whose callee is not in evaluate.allowed_builtins,
// user-defined function calls included").
func disallowedCall(tree *cst.Tree, n *cst.Node, allowed []string) (string, bool) {
	if n.Kind == cst.KindCallExpr && len(n.Children) > 0 {
		callee := n.Children[0]
		if callee.Kind == cst.KindIdentExpr {
			name := tree.Text(callee)
			if !containsFold(allowed, name) {
				return name, true
			}
		}
	}
	for _, c := range n.Children {
		if name, ok := disallowedCall(tree, c, allowed); ok {
			return name, true
		}
	}
	return "", false
}

func containsFold(list []string, name string) bool {
	for _, a := range list {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
