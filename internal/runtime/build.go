package runtime

import (
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// TaskDef is one CONFIGURATION/RESOURCE TASK declaration, carrying the
// scheduler's trigger parameters and the program instances it drives
// (spec §5 "every TASK binds a set of PROGRAM WITH instances").
type TaskDef struct {
	Name     string
	Interval Value // zero Value (no TIME literal) for event/SINGLE-only tasks
	Priority int
	Single   string // VAR_GLOBAL BOOL name that triggers this task, "" if INTERVAL-driven
	Programs []ProgramInstance
}

// ProgramInstance binds a declared instance name to the PROGRAM type it
// runs, backed by one allocated Instance in Storage.
type ProgramInstance struct {
	Name     string
	TypeName string
	Instance InstanceId
}

// Program is a fully linked compilation: its symbol table, type
// registry, POU-to-tree map, storage (globals already initialized), and
// the task list the scheduler drives each cycle.
type Program struct {
	Table   *symbols.Table
	Types   *types.Registry
	Storage *Storage
	Trees   map[symbols.SymbolId]*cst.Tree
	Tasks   []TaskDef
}

// Build links a resolved symbol table and type registry (already run
// through declaration collection and type resolution, spec §4.3/§4.4)
// against the parsed trees they came from: it builds the POU-to-tree
// map, initializes every global variable to its declared or literal
// initial value, and assembles the scheduler's task list from any
// CONFIGURATION block present.
func Build(table *symbols.Table, reg *types.Registry, trees map[string]*cst.Tree) *Program {
	p := &Program{
		Table:   table,
		Types:   reg,
		Storage: NewStorage(),
		Trees:   map[symbols.SymbolId]*cst.Tree{},
	}

	for _, tree := range trees {
		p.mapSymbols(tree, tree.Root)
	}

	ev := NewEvaluator(table, reg, p.Storage, p.Trees)
	for _, tree := range trees {
		p.initGlobals(ev, tree, tree.Root)
	}
	for _, tree := range trees {
		p.collectConfigurations(ev, tree, tree.Root)
	}

	return p
}

// mapSymbols reverse-matches every declared symbol whose Node lives in
// tree back to the tree that owns it, mirroring
// internal/semantic.Analyzer.symbolFor's per-POU lookup.
func (p *Program) mapSymbols(tree *cst.Tree, n *cst.Node) {
	for i := range p.Table.Symbols {
		sym := &p.Table.Symbols[i]
		if sym.Node == nil {
			continue
		}
		if nodeInTree(tree.Root, sym.Node) {
			p.Trees[symbols.SymbolId(i)] = tree
		}
	}
}

func nodeInTree(n, target *cst.Node) bool {
	if n == target {
		return true
	}
	for _, c := range n.Children {
		if nodeInTree(c, target) {
			return true
		}
	}
	return false
}

// initGlobals walks tree's top-level VAR_GLOBAL/VAR_CONFIG blocks,
// declaring each global in Storage at its literal initializer (or the
// type's zero value when absent), per spec §4.6 "globals are live
// before any task's first cycle."
func (p *Program) initGlobals(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	switch n.Kind {
	case cst.KindProgram, cst.KindFunction, cst.KindFunctionBlock, cst.KindClass, cst.KindMethod, cst.KindAction:
		// globals never live inside a POU body; locals are lazily
		// materialized per call by the evaluator instead.
		return
	case cst.KindVarBlock:
		p.initVarBlock(ev, tree, n)
		return
	}
	for _, c := range n.Children {
		p.initGlobals(ev, tree, c)
	}
}

func (p *Program) initVarBlock(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	for _, decl := range cst.ChildrenOfKind(n, cst.KindVarDecl) {
		p.initVarDecl(ev, tree, decl)
	}
}

func (p *Program) initVarDecl(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	names := cst.ChildrenOfKind(n, cst.KindIdentExpr)
	if len(names) == 0 {
		return
	}
	var initExpr *cst.Node
	if last := n.Children[len(n.Children)-1]; !isTypeRefKind(last.Kind) {
		initExpr = last
	}

	for _, nameLeaf := range names {
		name := tree.Text(nameLeaf)
		id, err := p.Table.Resolve(p.Table.Root, name)
		if err != nil {
			continue
		}
		sym := p.Table.Sym(id)
		if sym.VarQual != symbols.VarGlobal && sym.VarQual != symbols.VarConfig {
			continue
		}
		v := Zero(p.Types, sym.Type)
		if initExpr != nil {
			if val, err := ev.EvalExpr(p.Table.Root, tree, initExpr); err == nil {
				v = ev.convert(val, sym.Type)
			}
		}
		p.Storage.DeclareGlobal(sym.Name, v, sym.Retain)
	}
}

func isTypeRefKind(k cst.Kind) bool {
	switch k {
	case cst.KindTypeRef, cst.KindArrayTypeRef, cst.KindSubrangeTypeRef,
		cst.KindStructTypeRef, cst.KindEnumTypeRef, cst.KindPointerTypeRef, cst.KindReferenceTypeRef:
		return true
	default:
		return false
	}
}

// collectConfigurations walks tree's CONFIGURATION blocks, allocating
// one Instance per PROGRAM WITH binding and recording each RESOURCE's
// TASK declarations as TaskDefs for the scheduler.
func (p *Program) collectConfigurations(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	if n.Kind == cst.KindConfiguration {
		p.collectConfiguration(ev, tree, n)
		return
	}
	for _, c := range n.Children {
		p.collectConfigurations(ev, tree, c)
	}
}

func (p *Program) collectConfiguration(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	var directPrograms []ProgramInstance
	for _, child := range n.Children {
		switch child.Kind {
		case cst.KindResource:
			p.collectResource(ev, tree, child)
		case cst.KindProgramConfig:
			directPrograms = append(directPrograms, p.instantiateProgramConfig(tree, child))
		}
	}
	if len(directPrograms) > 0 {
		p.Tasks = append(p.Tasks, TaskDef{Name: "MAIN", Programs: directPrograms})
	}
}

func (p *Program) collectResource(ev *Evaluator, tree *cst.Tree, n *cst.Node) {
	programsByTask := map[string][]ProgramInstance{}
	var direct []ProgramInstance

	for _, pc := range cst.ChildrenOfKind(n, cst.KindProgramConfig) {
		inst := p.instantiateProgramConfig(tree, pc)
		idents := cst.ChildrenOfKind(pc, cst.KindIdentExpr)
		if len(idents) >= 2 {
			taskName := tree.Text(idents[1])
			programsByTask[taskName] = append(programsByTask[taskName], inst)
		} else {
			direct = append(direct, inst)
		}
	}

	for _, tc := range cst.ChildrenOfKind(n, cst.KindTaskConfig) {
		idents := cst.ChildrenOfKind(tc, cst.KindIdentExpr)
		taskName := ""
		if len(idents) > 0 {
			taskName = tree.Text(idents[0])
		}
		def := TaskDef{Name: taskName, Priority: 0, Programs: programsByTask[taskName]}
		for _, initParam := range cst.ChildrenOfKind(tc, cst.KindTaskInit) {
			p.applyTaskInit(ev, tree, initParam, &def)
		}
		p.Tasks = append(p.Tasks, def)
	}

	if len(direct) > 0 {
		p.Tasks = append(p.Tasks, TaskDef{Name: resourceName(tree, n), Programs: direct})
	}
}

func resourceName(tree *cst.Tree, n *cst.Node) string {
	if idents := cst.ChildrenOfKind(n, cst.KindIdentExpr); len(idents) > 0 {
		return tree.Text(idents[0])
	}
	return ""
}

// applyTaskInit fills in def's INTERVAL/PRIORITY/SINGLE from one
// TASK(...) init parameter, keyed by its own opening keyword token.
// SINGLE names a global BOOL trigger variable, so it is read as an
// identifier rather than evaluated to its current value.
func (p *Program) applyTaskInit(ev *Evaluator, tree *cst.Tree, n *cst.Node, def *TaskDef) {
	if len(n.Children) == 0 {
		return
	}
	kw := strings.ToUpper(tree.Tokens[n.StartTok].Text)
	if kw == "SINGLE" {
		def.Single = tree.Text(n.Children[0])
		return
	}
	val, err := ev.EvalExpr(p.Table.Root, tree, n.Children[0])
	if err != nil {
		return
	}
	switch kw {
	case "INTERVAL":
		def.Interval = val
	case "PRIORITY":
		def.Priority = int(val.AsInt64())
	}
}

// instantiateProgramConfig allocates the Instance a `PROGRAM Name : Type;`
// binding refers to and declares it as a global so the evaluator's
// ordinary identifier resolution can reach it by name from any task.
func (p *Program) instantiateProgramConfig(tree *cst.Tree, n *cst.Node) ProgramInstance {
	idents := cst.ChildrenOfKind(n, cst.KindIdentExpr)
	instName := ""
	if len(idents) > 0 {
		instName = tree.Text(idents[0])
	}
	typeRef, _ := cst.FirstChildOfKind(n, cst.KindTypeRef)
	typeName := ""
	if typeRef != nil {
		typeName = tree.Text(typeRef)
	}

	id := p.Storage.CreateInstance(typeName, NoInstance)
	if sid, err := p.Table.Resolve(p.Table.Root, typeName); err == nil {
		ev := NewEvaluator(p.Table, p.Types, p.Storage, p.Trees)
		ev.initInstanceFields(id, p.Table.Sym(sid).Type)
	}
	p.Storage.DeclareGlobal(instName, Value{Kind: KindInstance, Instance: id}, false)

	return ProgramInstance{Name: instName, TypeName: typeName, Instance: id}
}
