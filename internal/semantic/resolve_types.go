package semantic

import (
	"strconv"
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// defaultStringLen is the capacity IEC tooling assumes for an
// unsized STRING/WSTRING declaration.
const defaultStringLen = 80

// TypeResolver runs pass two of the symbol/type build (spec §4.3):
// walking every declared symbol's CST node to resolve its declared
// type reference into the shared types.Registry, constant-folding
// subrange and array bounds along the way.
type TypeResolver struct {
	Table *symbols.Table
	Types *types.Registry
	tree  *cst.Tree
	diags []Diagnostic
}

func NewTypeResolver(table *symbols.Table, reg *types.Registry) *TypeResolver {
	return &TypeResolver{Table: table, Types: reg}
}

// resolvePasses bounds the number of times ResolveFile re-walks every
// symbol to let forward references (a VAR typed with an FB declared
// later in the same file) converge. Two passes resolve the common
// case; a declaration still waiting on a forward reference after the
// last pass keeps an Invalid type and gets no diagnostic.
const resolvePasses = 3

// ResolveFile resolves every VAR_* and TYPE declaration whose Node came
// from tree. Call once per file after every file's declarations have
// been collected, so USING-qualified user types in other files are
// already visible.
func (r *TypeResolver) ResolveFile(tree *cst.Tree) []Diagnostic {
	r.tree = tree
	for pass := 0; pass < resolvePasses; pass++ {
		r.diags = nil
		for i := range r.Table.Symbols {
			sym := &r.Table.Symbols[i]
			if sym.Node == nil || !r.ownedBy(sym.Node, tree) {
				continue
			}
			switch sym.Kind {
			case symbols.KindVariable, symbols.KindParameter:
				r.resolveVarSymbol(symbols.SymbolId(i), sym)
			case symbols.KindType:
				r.resolveTypeDeclSymbol(symbols.SymbolId(i), sym)
			case symbols.KindProgram, symbols.KindFunctionBlock, symbols.KindClass, symbols.KindInterface:
				r.ensurePOUType(sym)
				r.resolveExtendsImplements(symbols.SymbolId(i), sym)
			case symbols.KindFunction:
				r.resolveFunctionReturnType(symbols.SymbolId(i), sym)
			}
		}
	}
	return r.diags
}

// ownedBy is a best-effort check that n's tokens are in range for tree;
// callers only ever resolve symbols built from the tree they pass in,
// so a resolver is always invoked per-file in BuildFile order.
func (r *TypeResolver) ownedBy(n *cst.Node, tree *cst.Tree) bool {
	return n.EndTok < len(tree.Tokens)
}

func (r *TypeResolver) addDiag(d Diagnostic) { r.diags = append(r.diags, d) }

func (r *TypeResolver) text(n *cst.Node) string { return r.tree.Text(n) }

func (r *TypeResolver) resolveVarSymbol(id symbols.SymbolId, sym *symbols.Symbol) {
	typeRef, ok := cst.FirstChildOfKind(sym.Node, cst.KindTypeRef)
	if !ok {
		typeRef, ok = firstTypeRefChild(sym.Node)
		if !ok {
			return
		}
	}
	sym.Type = r.resolveTypeRef(sym.Scope, typeRef)
	r.checkStringInitializer(sym)
	r.checkNondeterministic(sym)
}

// checkNondeterministic flags a declaration whose value cannot be
// reproduced from its own inputs: a direct I/O address binding, or a
// TIME/DATE/TOD/DT type backed by the platform clock (spec §4.4
// "nondeterministic time/date/IO uses").
func (r *TypeResolver) checkNondeterministic(sym *symbols.Symbol) {
	if sym.Type == types.Invalid {
		return
	}
	if _, hasAddr := cst.FirstChildOfKind(sym.Node, cst.KindDirectAddrExpr); hasAddr {
		r.addDiag(Diagnostic{Code: CodeNondeterministicUse, Severity: SeverityWarning,
			Message: sym.Name + " is bound to a direct I/O address, an external, nondeterministic input",
			Range: sym.Range})
		return
	}
	if r.Types.Get(sym.Type).Kind == types.KindTemporal {
		r.addDiag(Diagnostic{Code: CodeNondeterministicUse, Severity: SeverityWarning,
			Message: sym.Name + " has a TIME/DATE type backed by the platform clock, a nondeterministic input",
			Range: sym.Range})
	}
}

// checkStringInitializer flags a STRING/WSTRING declaration whose
// literal initializer (always a VarDecl's last child, when present)
// is longer than the declared capacity (spec §4.4 "string initializer
// exceeds capacity"). VAR_ACCESS's VarDecl shape never ends in a
// string literal, so this is safe to run over every resolved variable.
func (r *TypeResolver) checkStringInitializer(sym *symbols.Symbol) {
	if sym.Type == types.Invalid {
		return
	}
	t := r.Types.Get(sym.Type)
	if t.Kind != types.KindString && t.Kind != types.KindWString {
		return
	}
	children := sym.Node.Children
	if len(children) == 0 {
		return
	}
	last := children[len(children)-1]
	if last.Kind != cst.KindStringLiteral {
		return
	}
	if n := stringLiteralLen(r.text(last)); n > t.StrMaxLen {
		r.addDiag(Diagnostic{Code: CodeStringInitializerTooLong, Severity: SeverityError,
			Message: "string initializer exceeds declared capacity " + strconv.Itoa(t.StrMaxLen), Range: r.tree.Range(last)})
	}
}

// firstTypeRefChild finds the first child that is any of the type-ref
// node kinds, since a VarDecl's type may be KindArrayTypeRef,
// KindSubrangeTypeRef, KindPointerTypeRef, or KindReferenceTypeRef
// rather than the plain KindTypeRef.
func firstTypeRefChild(n *cst.Node) (*cst.Node, bool) {
	for _, c := range n.Children {
		switch c.Kind {
		case cst.KindTypeRef, cst.KindArrayTypeRef, cst.KindSubrangeTypeRef,
			cst.KindPointerTypeRef, cst.KindReferenceTypeRef, cst.KindStructTypeRef:
			return c, true
		}
	}
	return nil, false
}

func (r *TypeResolver) resolveTypeDeclSymbol(id symbols.SymbolId, sym *symbols.Symbol) {
	def, ok := firstTypeRefChild(sym.Node)
	if !ok {
		return
	}
	t := r.resolveTypeRef(sym.Scope, def)
	// Name the underlying anonymous type after its declared alias so
	// diagnostics and DAP variable displays show "Point" rather than
	// the structural rendering.
	if t != types.Invalid {
		underlying := r.Types.Get(t)
		if underlying.Name == "" {
			underlying.Name = sym.Name
		}
	}
	sym.Type = t
}

// ensurePOUType defines a registry Type for a PROGRAM/FUNCTION_BLOCK/
// CLASS/INTERFACE symbol on first resolution, so VAR declarations
// naming it as their type, and its own EXTENDS clause, have a TypeId
// to attach to.
func (r *TypeResolver) ensurePOUType(sym *symbols.Symbol) {
	if sym.Type != types.Invalid {
		return
	}
	kind := types.KindFunctionBlock
	if sym.Kind == symbols.KindClass {
		kind = types.KindClass
	} else if sym.Kind == symbols.KindInterface {
		kind = types.KindInterface
	}
	sym.Type = r.Types.Define(types.Type{Kind: kind, Name: sym.Name})
}

func (r *TypeResolver) resolveExtendsImplements(id symbols.SymbolId, sym *symbols.Symbol) {
	if ext, ok := cst.FirstChildOfKind(sym.Node, cst.KindExtendsClause); ok {
		name := r.extendsName(ext)
		if target, err := r.Table.Resolve(sym.Scope, name); err == nil {
			tsym := r.Table.Sym(target)
			if tsym.Type != types.Invalid {
				t := r.Types.Get(sym.Type)
				if t != nil {
					t.Extends = tsym.Type
				}
			}
		} else {
			r.addDiag(Diagnostic{Code: CodeCannotResolve, Severity: SeverityError,
				Message: "cannot resolve base type " + name, Range: r.tree.Range(ext)})
		}
	}
}

func (r *TypeResolver) extendsName(n *cst.Node) string {
	// parseExtendsClause keeps only the keyword + identifier in range;
	// the identifier is the node's own last token.
	return r.tree.Tokens[n.EndTok].Text
}

func (r *TypeResolver) resolveFunctionReturnType(id symbols.SymbolId, sym *symbols.Symbol) {
	if typeRef, ok := firstTypeRefChild(sym.Node); ok {
		sym.Type = r.resolveTypeRef(sym.Scope, typeRef)
	}
}

// resolveTypeRef resolves any type-ref CST node kind to a TypeId,
// defining new array/subrange/pointer/reference/struct types in the
// registry as needed and constant-folding bounds.
func (r *TypeResolver) resolveTypeRef(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	switch n.Kind {
	case cst.KindArrayTypeRef:
		return r.resolveArrayTypeRef(scope, n)
	case cst.KindPointerTypeRef:
		inner := r.resolveTypeRef(scope, n.Children[0])
		return r.Types.Define(types.Type{Kind: types.KindPointer, PointerTarget: inner})
	case cst.KindReferenceTypeRef:
		inner := r.resolveTypeRef(scope, n.Children[0])
		return r.Types.Define(types.Type{Kind: types.KindReference, ReferenceTarget: inner})
	case cst.KindSubrangeTypeRef:
		return r.resolveSubrangeTypeRef(scope, n)
	case cst.KindStructTypeRef:
		return r.resolveStructTypeRef(scope, n)
	case cst.KindTypeRef:
		return r.resolveSimpleTypeRef(scope, n)
	default:
		return types.Invalid
	}
}

func (r *TypeResolver) resolveArrayTypeRef(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	elem := n.Children[len(n.Children)-1]
	dimNodes := n.Children[:len(n.Children)-1]
	var dims []types.Dim
	for _, d := range dimNodes {
		lo, hi := r.foldConstInt(d.Children[0]), r.foldConstInt(d.Children[1])
		if hi < lo {
			r.addDiag(Diagnostic{Code: CodeSubrangeBoundsInverted, Severity: SeverityError,
				Message: "array dimension bounds are inverted", Range: r.tree.Range(d)})
		}
		dims = append(dims, types.Dim{Lower: lo, Upper: hi})
	}
	elemId := r.resolveTypeRef(scope, elem)
	return r.Types.Define(types.Type{Kind: types.KindArray, ArrayDims: dims, ArrayElem: elemId})
}

func (r *TypeResolver) resolveSubrangeTypeRef(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	if len(n.Children) == 3 {
		base := r.resolveTypeRef(scope, n.Children[0])
		lo, hi := r.foldConstInt(n.Children[1]), r.foldConstInt(n.Children[2])
		if hi < lo {
			r.addDiag(Diagnostic{Code: CodeSubrangeBoundsInverted, Severity: SeverityError,
				Message: "subrange bounds are inverted", Range: r.tree.Range(n)})
		}
		return r.Types.Define(types.Type{Kind: types.KindSubrange, SubrangeBase: base, SubrangeLower: lo, SubrangeUpper: hi})
	}
	// two-child form: a bare array dimension resolved directly (callers
	// that need an elementary array index type fall back to DINT).
	return r.Types.DInt
}

func (r *TypeResolver) resolveStructTypeRef(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	var fields []types.Field
	for _, fieldDecl := range n.Children {
		if fieldDecl.Kind != cst.KindVarDecl {
			continue
		}
		typeRef, ok := firstTypeRefChild(fieldDecl)
		if !ok {
			continue
		}
		ft := r.resolveTypeRef(scope, typeRef)
		for _, nameLeaf := range cst.ChildrenOfKind(fieldDecl, cst.KindIdentExpr) {
			fields = append(fields, types.Field{Name: r.text(nameLeaf), Type: ft})
		}
	}
	return r.Types.Define(types.Type{Kind: types.KindStruct, Fields: fields})
}

func isStringTypeToken(k lexer.Kind) bool { return k == lexer.KwString || k == lexer.KwWString }

func (r *TypeResolver) resolveSimpleTypeRef(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	startKind := r.tree.Tokens[n.StartTok].Kind
	if isStringTypeToken(startKind) {
		maxLen := defaultStringLen
		if len(n.Children) == 1 {
			maxLen = int(r.foldConstInt(n.Children[0]))
		}
		kind := types.KindString
		if startKind == lexer.KwWString {
			kind = types.KindWString
		}
		return r.Types.Define(types.Type{Kind: kind, StrMaxLen: maxLen})
	}

	name := r.text(n)
	if id, ok := r.Types.Lookup(strings.ToUpper(name)); ok {
		return id
	}
	if id, err := r.Table.Resolve(scope, name); err == nil {
		tsym := r.Table.Sym(id)
		if tsym.Type != types.Invalid {
			return tsym.Type
		}
		// Forward reference to a POU/type not yet resolved in this pass;
		// return Invalid rather than recursing, the caller re-resolves on
		// a later ResolveFile pass once dependency order settles it.
		return types.Invalid
	} else if re, ok := err.(*symbols.ResolutionError); ok {
		if re.Ambiguous {
			r.addDiag(Diagnostic{Code: CodeAmbiguousReference, Severity: SeverityError,
				Message: "ambiguous type reference " + name, Range: r.tree.Range(n)})
		} else {
			r.addDiag(Diagnostic{Code: CodeCannotResolve, Severity: SeverityError,
				Message: "cannot resolve type " + name, Range: r.tree.Range(n)})
		}
	}
	return types.Invalid
}

// foldConstInt constant-folds an integer literal or unary-minus integer
// literal expression used in subrange/array bounds. Non-literal bound
// expressions (named constants) resolve to 0 here; full constant
// propagation across named VAR CONSTANT declarations is left for a
// later evaluator-assisted pass, matching the conservative default
// the spec allows ("constant-folded ... from integer literals").
func (r *TypeResolver) foldConstInt(n *cst.Node) int64 {
	switch n.Kind {
	case cst.KindIntLiteral:
		v, _ := strconv.ParseInt(strings.ReplaceAll(r.text(n), "_", ""), 0, 64)
		return v
	case cst.KindUnaryExpr:
		op, _ := r.tree.OperatorToken(n)
		v := r.foldConstInt(n.Children[0])
		if op.Kind == lexer.Minus {
			return -v
		}
		return v
	default:
		return 0
	}
}
