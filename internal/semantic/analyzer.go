package semantic

import (
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// Analyzer ties the two-pass symbol/type build to the per-POU checker,
// over however many files make up one compilation.
type Analyzer struct {
	Table *symbols.Table
	Types *types.Registry

	trees    []*cst.Tree
	allUsed  map[symbols.SymbolId]bool
}

// NewAnalyzer creates an Analyzer with a fresh symbol table and type
// registry, ready to ingest one or more parsed files.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		Table:   symbols.NewTable(),
		Types:   types.NewRegistry(),
		allUsed: map[symbols.SymbolId]bool{},
	}
}

// AddFile runs declaration collection for tree and remembers it for the
// later Analyze pass. Call for every file in the compilation before
// calling Analyze, so cross-file USING/VAR_EXTERNAL references see
// every declaration.
func (a *Analyzer) AddFile(file string, tree *cst.Tree) {
	symbols.NewBuilder(a.Table).BuildFile(file, tree)
	a.trees = append(a.trees, tree)
}

// Analyze runs type resolution over every added file, then walks every
// POU body collecting diagnostics. It is safe to call once per
// Analyzer; build a new Analyzer for a fresh compilation (e.g. after an
// stReload).
func (a *Analyzer) Analyze() []Diagnostic {
	var diags []Diagnostic

	resolver := NewTypeResolver(a.Table, a.Types)
	for _, tree := range a.trees {
		diags = append(diags, resolver.ResolveFile(tree)...)
	}

	referenced := a.findReferencedPOUs()

	for _, tree := range a.trees {
		diags = append(diags, a.checkTree(tree, referenced)...)
	}

	diags = append(diags, a.checkUnusedPOUs(referenced)...)
	diags = append(diags, a.checkSharedGlobals()...)
	return diags
}

// checkTree walks every POU declared directly in tree, dispatching a
// fresh Checker per body.
func (a *Analyzer) checkTree(tree *cst.Tree, referenced map[symbols.SymbolId]bool) []Diagnostic {
	var diags []Diagnostic
	var walk func(scope symbols.ScopeId, n *cst.Node)
	walk = func(scope symbols.ScopeId, n *cst.Node) {
		switch n.Kind {
		case cst.KindProgram, cst.KindFunction, cst.KindFunctionBlock, cst.KindMethod, cst.KindAction:
			sym, ok := a.symbolFor(n)
			if !ok {
				return
			}
			checker := newChecker(a.Table, a.Types, tree, &diags)
			body, _ := cst.FirstChildOfKind(n, cst.KindStmtList)
			checker.CheckPOUBody(sym.NamespaceScope, sym, body)
			for id := range checker.used {
				a.allUsed[id] = true
			}
			for _, child := range n.Children {
				walk(sym.NamespaceScope, child)
			}
		case cst.KindClass, cst.KindInterface, cst.KindNamespace, cst.KindProperty,
			cst.KindPropertyGet, cst.KindPropertySet, cst.KindConfiguration, cst.KindResource:
			sym, ok := a.symbolFor(n)
			childScope := scope
			if ok {
				childScope = sym.NamespaceScope
			}
			for _, child := range n.Children {
				walk(childScope, child)
			}
		default:
			for _, child := range n.Children {
				walk(scope, child)
			}
		}
	}
	walk(a.Table.Root, tree.Root)
	return diags
}

func (a *Analyzer) symbolFor(n *cst.Node) (*symbols.Symbol, bool) {
	for i := range a.Table.Symbols {
		if a.Table.Symbols[i].Node == n {
			return &a.Table.Symbols[i], true
		}
	}
	return nil, false
}

// findReferencedPOUs collects every POU symbol reachable from a task
// (PROGRAM ... WITH task), a VAR_CONFIG binding, or used as a
// declared variable's type, so CodeUnusedPOU can suppress those.
func (a *Analyzer) findReferencedPOUs() map[symbols.SymbolId]bool {
	referenced := map[symbols.SymbolId]bool{}
	for i := range a.Table.Symbols {
		sym := &a.Table.Symbols[i]
		if sym.Type == types.Invalid {
			continue
		}
		switch sym.Kind {
		case symbols.KindVariable, symbols.KindParameter, symbols.KindProgramInstance:
			a.markPOUOfType(sym.Type, referenced)
		}
	}
	return referenced
}

func (a *Analyzer) markPOUOfType(t types.TypeId, referenced map[symbols.SymbolId]bool) {
	for i := range a.Table.Symbols {
		if a.Table.Symbols[i].Type == t {
			referenced[symbols.SymbolId(i)] = true
		}
	}
}

// checkUnusedPOUs emits CodeUnusedPOU for FUNCTION_BLOCK/CLASS/FUNCTION
// declarations never referenced by a call, a typed VAR declaration, a
// task program instance, or VAR_CONFIG.
func (a *Analyzer) checkUnusedPOUs(referenced map[symbols.SymbolId]bool) []Diagnostic {
	var diags []Diagnostic
	for i := range a.Table.Symbols {
		id := symbols.SymbolId(i)
		sym := &a.Table.Symbols[i]
		switch sym.Kind {
		case symbols.KindFunctionBlock, symbols.KindClass, symbols.KindFunction:
		default:
			continue
		}
		if sym.Name == "" || referenced[id] || a.allUsed[id] {
			continue
		}
		diags = append(diags, Diagnostic{Code: CodeUnusedPOU, Severity: SeverityWarning,
			Message: "unused declaration " + sym.Name, Range: sym.Range})
	}
	return diags
}

// programBinding pairs a PROGRAM ... WITH Task : TypeName configuration
// entry with the task it runs under: "MAIN" for a direct
// CONFIGURATION-level binding, the owning RESOURCE's own name when the
// binding carries no WITH clause, or the named task otherwise.
type programBinding struct {
	typeName string
	task     string
}

// checkSharedGlobals emits CodeSharedGlobalAcrossTasks for every
// VAR_GLOBAL read or written from program instances bound to more than
// one distinct task (spec §4.4 "shared globals accessed from distinct
// tasks"), grouping PROGRAM ... WITH Task bindings the way
// internal/runtime/build.go's collectConfiguration/collectResource do.
func (a *Analyzer) checkSharedGlobals() []Diagnostic {
	globals := map[string]symbols.SymbolId{}
	for i := range a.Table.Symbols {
		sym := &a.Table.Symbols[i]
		if sym.Kind == symbols.KindVariable && sym.VarQual == symbols.VarGlobal && sym.Name != "" {
			globals[strings.ToUpper(sym.Name)] = symbols.SymbolId(i)
		}
	}
	if len(globals) == 0 {
		return nil
	}

	var bindings []programBinding
	for _, tree := range a.trees {
		collectProgramBindings(tree, tree.Root, &bindings)
	}

	tasksOf := map[symbols.SymbolId]map[string]bool{}
	for _, b := range bindings {
		progId, err := a.Table.Resolve(a.Table.Root, b.typeName)
		if err != nil {
			continue
		}
		prog := a.Table.Sym(progId)
		if prog.Kind != symbols.KindProgram || prog.Node == nil {
			continue
		}
		progTree := a.treeContaining(prog.Node)
		if progTree == nil {
			continue
		}
		body, ok := cst.FirstChildOfKind(prog.Node, cst.KindStmtList)
		if !ok {
			continue
		}
		for _, ref := range identRefs(progTree, body) {
			id, found := globals[strings.ToUpper(ref)]
			if !found {
				continue
			}
			set := tasksOf[id]
			if set == nil {
				set = map[string]bool{}
				tasksOf[id] = set
			}
			set[b.task] = true
		}
	}

	var diags []Diagnostic
	for id, tasks := range tasksOf {
		if len(tasks) < 2 {
			continue
		}
		sym := a.Table.Sym(id)
		diags = append(diags, Diagnostic{Code: CodeSharedGlobalAcrossTasks, Severity: SeverityWarning,
			Message: sym.Name + " is accessed from more than one task without synchronization",
			Range: sym.Range})
	}
	return diags
}

func collectProgramBindings(tree *cst.Tree, n *cst.Node, out *[]programBinding) {
	if n.Kind == cst.KindConfiguration {
		for _, child := range n.Children {
			switch child.Kind {
			case cst.KindResource:
				collectResourceBindings(tree, child, out)
			case cst.KindProgramConfig:
				*out = append(*out, programBinding{typeName: programConfigType(tree, child), task: "MAIN"})
			}
		}
		return
	}
	for _, c := range n.Children {
		collectProgramBindings(tree, c, out)
	}
}

func collectResourceBindings(tree *cst.Tree, n *cst.Node, out *[]programBinding) {
	resTask := configName(tree, n)
	for _, pc := range cst.ChildrenOfKind(n, cst.KindProgramConfig) {
		idents := cst.ChildrenOfKind(pc, cst.KindIdentExpr)
		task := resTask
		if len(idents) >= 2 {
			task = tree.Text(idents[1])
		}
		*out = append(*out, programBinding{typeName: programConfigType(tree, pc), task: task})
	}
}

func programConfigType(tree *cst.Tree, n *cst.Node) string {
	typeRef, ok := cst.FirstChildOfKind(n, cst.KindTypeRef)
	if !ok {
		return ""
	}
	return tree.Text(typeRef)
}

func configName(tree *cst.Tree, n *cst.Node) string {
	if idents := cst.ChildrenOfKind(n, cst.KindIdentExpr); len(idents) > 0 {
		return tree.Text(idents[0])
	}
	return ""
}

// treeContaining finds the parsed file owning target, since a symbol's
// declaring node carries no back-reference to its tree.
func (a *Analyzer) treeContaining(target *cst.Node) *cst.Tree {
	for _, tree := range a.trees {
		if containsNode(tree.Root, target) {
			return tree
		}
	}
	return nil
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

// identRefs collects every identifier-expression's text under n. A
// PROGRAM body's enclosing scope does not walk up to its
// CONFIGURATION's VAR_GLOBAL scope, so CodeSharedGlobalAcrossTasks
// matches VAR_GLOBAL access by identifier text rather than scope
// resolution.
func identRefs(tree *cst.Tree, n *cst.Node) []string {
	var out []string
	var walk func(*cst.Node)
	walk = func(n *cst.Node) {
		if n.Kind == cst.KindIdentExpr {
			out = append(out, tree.Text(n))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}
