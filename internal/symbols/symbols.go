// Package symbols builds the symbol table: scopes, declared symbols,
// and USING-based qualified-name resolution, over a parsed cst.Tree.
// Mirrors the two-pass build of spec.md §4.3: declaration collection,
// then type resolution (the latter lives in internal/semantic, which
// depends on this package and internal/types).
package symbols

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/types"
)

// SymbolId is an opaque handle into a Table's symbol arena.
type SymbolId int

// Kind names the declaration kind a Symbol represents.
type Kind int

const (
	KindVariable Kind = iota
	KindConstant
	KindFunction
	KindFunctionBlock
	KindClass
	KindMethod
	KindProperty
	KindInterface
	KindNamespace
	KindProgram
	KindConfiguration
	KindResource
	KindTask
	KindProgramInstance
	KindType
	KindEnumValue
	KindParameter
)

// VarQualifier distinguishes how a KindVariable symbol was declared.
type VarQualifier int

const (
	VarLocal VarQualifier = iota
	VarInput
	VarOutput
	VarInOut
	VarGlobal
	VarExternal
	VarTemp
	VarAccess
	VarConfig
)

// ParamDirection names a KindParameter symbol's passing direction.
type ParamDirection int

const (
	ParamIn ParamDirection = iota
	ParamOut
	ParamInOut
)

// Visibility is a symbol's declared accessibility.
type Visibility int

const (
	Public Visibility = iota
	Private
	Protected
	Internal
)

// Modifiers bundles the boolean declaration modifiers a symbol may carry.
type Modifiers struct {
	Final    bool
	Abstract bool
	Override bool
}

// Origin records where an imported symbol actually came from, for
// cross-file references (VAR_EXTERNAL -> VAR_GLOBAL, etc.).
type Origin struct {
	File     string
	SymbolId SymbolId
}

// Symbol is one declared name.
type Symbol struct {
	Name       string
	Kind       Kind
	VarQual    VarQualifier
	ParamDir   ParamDirection
	Visibility Visibility
	Modifiers  Modifiers
	Range      lexer.Range
	Origin     *Origin
	Type       types.TypeId
	Scope      ScopeId
	Retain     bool
	Constant   bool
	AccessMode AccessMode // KindVariable with VarAccess
	Node       *cst.Node  // declaring CST node, for go-to-definition

	NamespaceScope ScopeId // KindNamespace: the scope holding this namespace's own members
}

// AccessMode is the READ_ONLY/READ_WRITE mode of a VAR_ACCESS symbol.
type AccessMode int

const (
	AccessReadWrite AccessMode = iota
	AccessReadOnly
)

// ScopeId is an opaque handle into a Table's scope arena.
type ScopeId int

// NoScope is the sentinel for "no parent" (the root scope's parent).
const NoScope ScopeId = -1

// Scope is a named-declaration namespace with a parent link and a list
// of USING paths resolved from it.
type Scope struct {
	Parent ScopeId
	Names  map[string]SymbolId // case-preserving key, see Table.LookupLocal for case-insensitive access
	Order  []SymbolId          // declaration order, for positional parameter/field binding
	Using  []string            // dotted paths, declaration order
	Owner  *cst.Node           // the node that opened this scope, nil for the root
}

// Table holds every scope and symbol produced by the declaration pass
// for one compilation (which may span several parsed files/namespaces).
type Table struct {
	Scopes  []Scope
	Symbols []Symbol
	Root    ScopeId

	// caseIndex maps a scope id to a lower-cased-name -> SymbolId map,
	// filled in by Declare, for the case-insensitive lookup the spec requires.
	caseIndex map[ScopeId]map[string]SymbolId
}

// NewTable creates a Table with an empty root scope.
func NewTable() *Table {
	t := &Table{caseIndex: map[ScopeId]map[string]SymbolId{}}
	t.Root = t.NewScope(NoScope, nil)
	return t
}

// NewScope opens a new scope under parent and returns its id.
func (t *Table) NewScope(parent ScopeId, owner *cst.Node) ScopeId {
	id := ScopeId(len(t.Scopes))
	t.Scopes = append(t.Scopes, Scope{Parent: parent, Names: map[string]SymbolId{}, Owner: owner})
	return id
}

// Declare adds sym to scope, returning its new SymbolId. Duplicate
// declarations are permitted at the Table level (the semantic analyzer
// decides whether a specific duplicate is an error, e.g. formal-call
// duplicate parameter is different from POU-level redeclaration); the
// case-insensitive index always reflects the most recently declared
// symbol for a given folded name, matching "last wins" shadow semantics
// within one scope-building pass only for truly repeated declarations.
func (t *Table) Declare(scope ScopeId, sym Symbol) SymbolId {
	sym.Scope = scope
	id := SymbolId(len(t.Symbols))
	t.Symbols = append(t.Symbols, sym)
	t.Scopes[scope].Names[sym.Name] = id
	t.Scopes[scope].Order = append(t.Scopes[scope].Order, id)
	if t.caseIndex[scope] == nil {
		t.caseIndex[scope] = map[string]SymbolId{}
	}
	t.caseIndex[scope][foldName(sym.Name)] = id
	return id
}

// AddUsing records a USING path on scope, in declaration order.
func (t *Table) AddUsing(scope ScopeId, path string) {
	t.Scopes[scope].Using = append(t.Scopes[scope].Using, path)
}

func (t *Table) Sym(id SymbolId) *Symbol { return &t.Symbols[id] }

// OrderedSymbols returns scope's directly declared symbols in declaration
// order, for positional parameter binding and struct field ordering.
func (t *Table) OrderedSymbols(scope ScopeId) []SymbolId {
	return t.Scopes[scope].Order
}

// Params returns scope's KindParameter symbols in declaration order.
func (t *Table) Params(scope ScopeId) []SymbolId {
	var out []SymbolId
	for _, id := range t.Scopes[scope].Order {
		if t.Sym(id).Kind == KindParameter {
			out = append(out, id)
		}
	}
	return out
}

func foldName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// LookupLocal finds name directly in scope (case-insensitive), without
// walking parents or USING paths.
func (t *Table) LookupLocal(scope ScopeId, name string) (SymbolId, bool) {
	id, ok := t.caseIndex[scope][foldName(name)]
	return id, ok
}

// ResolutionError is returned by Resolve when a qualified name cannot be
// resolved to exactly one symbol.
type ResolutionError struct {
	Name       string
	Ambiguous  bool
	Candidates []SymbolId
	UsingPaths []string
}

func (e *ResolutionError) Error() string {
	if e.Ambiguous {
		return "ambiguous reference to " + e.Name
	}
	return "cannot resolve " + e.Name
}

// Resolve implements the scope-walk-then-USING-fallback rule of spec
// §4.3: walk scopes outward, a local hit wins; otherwise consult every
// USING path on the starting scope (and its ancestors) in order,
// accumulating all non-namespace matches. Zero matches is CannotResolve;
// two or more distinct matches is an ambiguous CannotResolve.
func (t *Table) Resolve(from ScopeId, name string) (SymbolId, error) {
	for s := from; s != NoScope; s = t.Scopes[s].Parent {
		if id, ok := t.LookupLocal(s, name); ok {
			return id, nil
		}
	}

	var candidates []SymbolId
	var usedPaths []string
	for s := from; s != NoScope; s = t.Scopes[s].Parent {
		for _, path := range t.Scopes[s].Using {
			if id, ok := t.resolveInNamespace(path, name); ok {
				if t.Sym(id).Kind != KindNamespace {
					candidates = append(candidates, id)
					usedPaths = append(usedPaths, path)
				}
			}
		}
	}

	unique := dedupe(candidates)
	switch len(unique) {
	case 0:
		return 0, &ResolutionError{Name: name}
	case 1:
		return unique[0], nil
	default:
		return 0, &ResolutionError{Name: name, Ambiguous: true, Candidates: unique, UsingPaths: usedPaths}
	}
}

func dedupe(ids []SymbolId) []SymbolId {
	seen := map[SymbolId]bool{}
	var out []SymbolId
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// resolveInNamespace looks up name within the namespace scope named by
// the dotted path, which must itself have been declared as a
// KindNamespace symbol reachable from the root scope.
func (t *Table) resolveInNamespace(path, name string) (SymbolId, bool) {
	nsScope, ok := t.findNamespaceScope(path)
	if !ok {
		return 0, false
	}
	return t.LookupLocal(nsScope, name)
}

// findNamespaceScope walks a dotted USING path from the root scope to
// the scope that holds the namespace's own members.
func (t *Table) findNamespaceScope(path string) (ScopeId, bool) {
	scope := t.Root
	for _, part := range splitDots(path) {
		id, ok := t.LookupLocal(scope, part)
		if !ok || t.Sym(id).Kind != KindNamespace {
			return 0, false
		}
		scope = t.Sym(id).NamespaceScope
	}
	return scope, true
}

func splitDots(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == '.' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	out = append(out, cur)
	return out
}
