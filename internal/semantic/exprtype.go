package semantic

import (
	"strconv"
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// ExprTyper infers the static type of an expression CST node, resolving
// identifiers through the symbol table and recording CannotResolve /
// AmbiguousReference diagnostics as it goes (so every expression walk
// that needs a type gets name resolution for free).
type ExprTyper struct {
	Table *symbols.Table
	Types *types.Registry
	tree  *cst.Tree
	diags *[]Diagnostic
}

func NewExprTyper(table *symbols.Table, reg *types.Registry, tree *cst.Tree, diags *[]Diagnostic) *ExprTyper {
	return &ExprTyper{Table: table, Types: reg, tree: tree, diags: diags}
}

func (e *ExprTyper) add(d Diagnostic) { *e.diags = append(*e.diags, d) }

// IsUntypedIntLiteral reports whether n is a bare integer literal (not
// wrapped in a typed-literal or unary-minus on a literal), the only
// shape the contextual-typing rule in spec §4.4 exempts from
// ImplicitConversion warnings.
func (e *ExprTyper) IsUntypedIntLiteral(n *cst.Node) bool {
	return n.Kind == cst.KindIntLiteral
}

// ResolveIdent resolves an identifier expression node to its symbol,
// emitting CannotResolve/AmbiguousReference on failure.
func (e *ExprTyper) ResolveIdent(scope symbols.ScopeId, n *cst.Node) (symbols.SymbolId, bool) {
	name := e.tree.Text(n)
	if strings.EqualFold(name, "THIS") || strings.EqualFold(name, "SUPER") {
		// THIS/SUPER are reserved self-references, not declared symbols;
		// full type tracking for them belongs to the (not yet modeled)
		// enclosing-POU-type context, so resolution is skipped silently
		// rather than reported as CannotResolve.
		return 0, false
	}
	id, err := e.Table.Resolve(scope, name)
	if err == nil {
		return id, true
	}
	re, _ := err.(*symbols.ResolutionError)
	if re != nil && re.Ambiguous {
		var related []RelatedLocation
		for i, cand := range re.Candidates {
			sym := e.Table.Sym(cand)
			path := ""
			if i < len(re.UsingPaths) {
				path = re.UsingPaths[i]
			}
			related = append(related, RelatedLocation{Message: "candidate via USING " + path, Range: sym.Range})
		}
		e.add(Diagnostic{Code: CodeAmbiguousReference, Severity: SeverityError,
			Message: "ambiguous reference to " + name, Range: e.tree.Range(n), Related: related})
	} else {
		e.add(Diagnostic{Code: CodeCannotResolve, Severity: SeverityError,
			Message: "cannot resolve " + name, Range: e.tree.Range(n)})
	}
	return 0, false
}

// TypeOf infers n's static type, returning types.Invalid if it cannot
// be determined (an already-reported resolution failure, or a shape
// the analyzer does not yet model precisely).
func (e *ExprTyper) TypeOf(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	switch n.Kind {
	case cst.KindIntLiteral:
		return e.Types.DInt
	case cst.KindRealLiteral:
		return e.Types.Real
	case cst.KindBoolLiteral:
		return e.Types.Bool
	case cst.KindStringLiteral:
		text := e.tree.Text(n)
		return e.Types.Define(types.Type{Kind: types.KindString, StrMaxLen: stringLiteralLen(text)})
	case cst.KindDirectAddrExpr:
		return e.directAddrType(n)
	case cst.KindTypedLiteral:
		return e.typedLiteralType(scope, n)
	case cst.KindIdentExpr:
		if id, ok := e.ResolveIdent(scope, n); ok {
			return e.Table.Sym(id).Type
		}
		return types.Invalid
	case cst.KindGroupedExpr:
		return e.TypeOf(scope, n.Children[0])
	case cst.KindUnaryExpr:
		return e.unaryType(scope, n)
	case cst.KindBinaryExpr:
		return e.binaryType(scope, n)
	case cst.KindCallExpr:
		return e.callType(scope, n)
	case cst.KindIndexExpr:
		return e.indexType(scope, n)
	case cst.KindMemberExpr:
		return e.memberType(scope, n)
	case cst.KindDerefExpr:
		return e.derefType(scope, n)
	case cst.KindRefExpr, cst.KindAdrExpr:
		operand := n.Children[0]
		if !isLvalueExpr(operand) {
			e.add(Diagnostic{Code: CodeRefAdrOnNonLvalue, Severity: SeverityError,
				Message: "REF/ADR requires an lvalue operand", Range: e.tree.Range(operand)})
		}
		inner := e.TypeOf(scope, operand)
		return e.Types.Define(types.Type{Kind: types.KindPointer, PointerTarget: inner})
	default:
		return types.Invalid
	}
}

// isLvalueExpr reports whether n is one of the node kinds
// EvalLValue (internal/runtime) can resolve to a storage cell --
// a bare identifier, array index, struct/instance member, direct I/O
// address, or pointer dereference -- unwrapping any enclosing
// parentheses.
func isLvalueExpr(n *cst.Node) bool {
	for n.Kind == cst.KindGroupedExpr {
		n = n.Children[0]
	}
	switch n.Kind {
	case cst.KindIdentExpr, cst.KindIndexExpr, cst.KindMemberExpr, cst.KindDerefExpr, cst.KindDirectAddrExpr:
		return true
	default:
		return false
	}
}

func stringLiteralLen(text string) int {
	n := len(text) - 2 // strip surrounding quotes
	if n < 0 {
		n = 0
	}
	return n
}

// directAddrType classifies %IX0.0 / %QW10 / %MD100 by its size letter
// (X=bit, B=byte, W=word, D=dword, L=lword), defaulting to BOOL for a
// bit address with no explicit size letter (the common %I0.0 form).
func (e *ExprTyper) directAddrType(n *cst.Node) types.TypeId {
	addr := e.tree.Text(n)
	for i := 1; i < len(addr); i++ {
		switch addr[i] {
		case 'X':
			return e.Types.Bool
		case 'B':
			return e.Types.Byte
		case 'W':
			return e.Types.Word
		case 'D':
			return e.Types.DWord
		case 'L':
			return e.Types.LWord
		case 'I', 'Q', 'M':
			continue
		default:
			if addr[i] >= '0' && addr[i] <= '9' {
				return e.Types.Bool
			}
		}
	}
	return e.Types.Bool
}

// typedLiteralType resolves `Prefix#value`: TIME#/DATE#/TOD#/DT# to the
// matching temporal type, an elementary name (INT#, DINT#, ...) to that
// elementary type, and anything else to a user enum type named by the
// prefix (Color#Red).
func (e *ExprTyper) typedLiteralType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	prefixTok := e.tree.Tokens[n.StartTok]
	prefix := strings.TrimSuffix(prefixTok.Text, "#")
	upper := strings.ToUpper(prefix)
	switch upper {
	case "TIME", "T":
		return e.Types.Time
	case "DATE", "D":
		return e.Types.Date
	case "TOD", "TIME_OF_DAY":
		return e.Types.TOD
	case "DT", "DATE_AND_TIME":
		return e.Types.DT
	}
	if id, ok := e.Types.Lookup(upper); ok {
		return id
	}
	if id, err := e.Table.Resolve(scope, prefix); err == nil {
		return e.Table.Sym(id).Type
	}
	return types.Invalid
}

func (e *ExprTyper) unaryType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	op, _ := e.tree.OperatorToken(n)
	operand := e.TypeOf(scope, n.Children[0])
	if op.Kind == lexer.KwNot {
		return e.Types.Bool
	}
	return operand
}

func (e *ExprTyper) binaryType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	op, _ := e.tree.OperatorToken(n)
	lt := e.TypeOf(scope, n.Children[0])
	rt := e.TypeOf(scope, n.Children[1])
	switch op.Kind {
	case lexer.Eq, lexer.Ne, lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge,
		lexer.KwAnd, lexer.KwOr, lexer.KwXor:
		return e.Types.Bool
	default:
		return e.widerNumeric(lt, rt)
	}
}

// widerNumeric returns whichever of a/b has the greater elementary
// rank, resolving aliases/subranges to their base first; falls back to
// a when the kinds are not directly comparable (e.g. one is Invalid).
func (e *ExprTyper) widerNumeric(a, b types.TypeId) types.TypeId {
	ra, rb := e.Types.Resolve(a), e.Types.Resolve(b)
	if ra == types.Invalid {
		return rb
	}
	if rb == types.Invalid {
		return ra
	}
	ta, tb := e.Types.Get(ra), e.Types.Get(rb)
	if ta.Kind != types.KindElementary || tb.Kind != types.KindElementary {
		return a
	}
	if tb.Elementary.WiderThan(ta.Elementary) {
		return b
	}
	return a
}

// callType resolves a call's callee to its declared return type. The
// argument arity/name checks live in analyze_calls.go; this only needs
// the result type.
func (e *ExprTyper) callType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	callee := n.Children[0]
	if callee.Kind != cst.KindIdentExpr {
		return types.Invalid
	}
	id, ok := e.ResolveIdent(scope, callee)
	if !ok {
		return types.Invalid
	}
	return e.Table.Sym(id).Type
}

func (e *ExprTyper) indexType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	baseType := e.TypeOf(scope, n.Children[0])
	resolved := e.Types.Resolve(baseType)
	if resolved == types.Invalid {
		return types.Invalid
	}
	t := e.Types.Get(resolved)
	if t.Kind != types.KindArray {
		return types.Invalid
	}
	return t.ArrayElem
}

// memberType resolves `base.Name` by finding base's declaring POU/
// struct symbol and looking Name up in its member scope or field list.
func (e *ExprTyper) memberType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	baseType := e.TypeOf(scope, n.Children[0])
	nameNode := n.Children[1]
	name := e.tree.Text(nameNode)
	resolved := e.Types.Resolve(baseType)
	if resolved == types.Invalid {
		return types.Invalid
	}
	t := e.Types.Get(resolved)
	if t.Kind == types.KindStruct {
		for _, f := range t.Fields {
			if strings.EqualFold(f.Name, name) {
				return f.Type
			}
		}
		return types.Invalid
	}
	if memberScope, ok := e.memberScopeFor(resolved); ok {
		if id, found := e.Table.LookupLocal(memberScope, name); found {
			return e.Table.Sym(id).Type
		}
	}
	return types.Invalid
}

// memberScopeFor finds the POU symbol whose own Type equals t and
// returns its member (body) scope.
func (e *ExprTyper) memberScopeFor(t types.TypeId) (symbols.ScopeId, bool) {
	for i := range e.Table.Symbols {
		if e.Table.Symbols[i].Type == t &&
			(e.Table.Symbols[i].Kind == symbols.KindFunctionBlock ||
				e.Table.Symbols[i].Kind == symbols.KindClass ||
				e.Table.Symbols[i].Kind == symbols.KindInterface ||
				e.Table.Symbols[i].Kind == symbols.KindProgram) {
			return e.Table.Symbols[i].NamespaceScope, true
		}
	}
	return 0, false
}

func (e *ExprTyper) derefType(scope symbols.ScopeId, n *cst.Node) types.TypeId {
	baseType := e.TypeOf(scope, n.Children[0])
	resolved := e.Types.Resolve(baseType)
	if resolved == types.Invalid {
		return types.Invalid
	}
	t := e.Types.Get(resolved)
	switch t.Kind {
	case types.KindPointer:
		return t.PointerTarget
	case types.KindReference:
		return t.ReferenceTarget
	default:
		return types.Invalid
	}
}

// evalConstIntExpr constant-folds a simple literal/unary-minus integer
// expression for range-check diagnostics outside type resolution (e.g.
// checking an index literal against an array's folded bounds).
func evalConstIntExpr(tree *cst.Tree, n *cst.Node) (int64, bool) {
	switch n.Kind {
	case cst.KindIntLiteral:
		v, err := strconv.ParseInt(strings.ReplaceAll(tree.Text(n), "_", ""), 0, 64)
		return v, err == nil
	case cst.KindUnaryExpr:
		op, _ := tree.OperatorToken(n)
		v, ok := evalConstIntExpr(tree, n.Children[0])
		if !ok {
			return 0, false
		}
		if op.Kind == lexer.Minus {
			return -v, true
		}
		return v, true
	default:
		return 0, false
	}
}
