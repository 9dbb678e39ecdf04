package runtime

import (
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

func (ev *Evaluator) evalUnary(scope symbols.ScopeId, tree *cst.Tree, n *cst.Node) (Value, error) {
	op, _ := tree.OperatorToken(n)
	v, err := ev.EvalExpr(scope, tree, n.Children[0])
	if err != nil {
		return Value{}, err
	}
	switch op.Kind {
	case lexer.KwNot:
		if v.Kind == KindInt {
			return Value{Kind: KindInt, Type: v.Type, Int: ^v.Int}, nil
		}
		return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: !v.Bool}, nil
	case lexer.Minus:
		if v.Kind == KindReal {
			return Value{Kind: KindReal, Type: v.Type, Real: -v.Real}, nil
		}
		return Value{Kind: KindInt, Type: v.Type, Int: -v.Int}, nil
	case lexer.Plus:
		return v, nil
	default:
		return v, nil
	}
}

// evalBinary implements IEC promotion rules: comparisons and logical
// operators always produce BOOL; MOD, integer division, bitwise ops on
// BYTE/WORD/DWORD/LWORD, and right-associative ** are evaluated per
// spec §4.5.
func (ev *Evaluator) evalBinary(scope symbols.ScopeId, tree *cst.Tree, n *cst.Node) (Value, error) {
	op, _ := tree.OperatorToken(n)

	// AND/OR short-circuit like every IEC implementation in practice,
	// even though the language report allows eager evaluation.
	if op.Kind == lexer.KwAnd || op.Kind == lexer.Amp {
		l, err := ev.EvalExpr(scope, tree, n.Children[0])
		if err != nil {
			return Value{}, err
		}
		if l.Kind == KindBool && !l.Bool {
			return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: false}, nil
		}
		r, err := ev.EvalExpr(scope, tree, n.Children[1])
		if err != nil {
			return Value{}, err
		}
		if l.Kind == KindBool {
			return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: l.Bool && r.Bool}, nil
		}
		return Value{Kind: KindInt, Type: l.Type, Int: l.Int & r.Int}, nil
	}
	if op.Kind == lexer.KwOr {
		l, err := ev.EvalExpr(scope, tree, n.Children[0])
		if err != nil {
			return Value{}, err
		}
		if l.Kind == KindBool && l.Bool {
			return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: true}, nil
		}
		r, err := ev.EvalExpr(scope, tree, n.Children[1])
		if err != nil {
			return Value{}, err
		}
		if l.Kind == KindBool {
			return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: l.Bool || r.Bool}, nil
		}
		return Value{Kind: KindInt, Type: l.Type, Int: l.Int | r.Int}, nil
	}

	l, err := ev.EvalExpr(scope, tree, n.Children[0])
	if err != nil {
		return Value{}, err
	}
	r, err := ev.EvalExpr(scope, tree, n.Children[1])
	if err != nil {
		return Value{}, err
	}

	switch op.Kind {
	case lexer.Eq:
		return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: l.Equal(r)}, nil
	case lexer.Ne:
		return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: !l.Equal(r)}, nil
	case lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge:
		return ev.compare(op.Kind, l, r), nil
	case lexer.KwXor:
		if l.Kind == KindBool {
			return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: l.Bool != r.Bool}, nil
		}
		return Value{Kind: KindInt, Type: l.Type, Int: l.Int ^ r.Int}, nil
	case lexer.KwMod:
		if r.AsInt64() == 0 {
			return Value{}, NewError(ErrDivisionByZero, tree.Range(n), "MOD by zero")
		}
		return Value{Kind: KindInt, Type: ev.widerOf(l, r), Int: l.AsInt64() % r.AsInt64()}, nil
	case lexer.KwDiv:
		if r.AsInt64() == 0 {
			return Value{}, NewError(ErrDivisionByZero, tree.Range(n), "DIV by zero")
		}
		return Value{Kind: KindInt, Type: ev.widerOf(l, r), Int: l.AsInt64() / r.AsInt64()}, nil
	case lexer.Slash:
		if l.Kind == KindReal || r.Kind == KindReal {
			if r.AsFloat64() == 0 {
				return Value{}, NewError(ErrDivisionByZero, tree.Range(n), "division by zero")
			}
			return Value{Kind: KindReal, Type: ev.widerOf(l, r), Real: l.AsFloat64() / r.AsFloat64()}, nil
		}
		if r.AsInt64() == 0 {
			return Value{}, NewError(ErrDivisionByZero, tree.Range(n), "division by zero")
		}
		return Value{Kind: KindInt, Type: ev.widerOf(l, r), Int: l.AsInt64() / r.AsInt64()}, nil
	case lexer.Plus:
		return ev.arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), nil
	case lexer.Minus:
		return ev.arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }), nil
	case lexer.Star:
		return ev.arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }), nil
	case lexer.Power:
		return ev.power(l, r), nil
	default:
		return Value{}, NewError(ErrTypeMismatch, tree.Range(n), "unsupported operator")
	}
}

func (ev *Evaluator) compare(op lexer.Kind, l, r Value) Value {
	var lt, eq bool
	if l.Kind == KindReal || r.Kind == KindReal {
		lf, rf := l.AsFloat64(), r.AsFloat64()
		lt, eq = lf < rf, lf == rf
	} else if l.Kind == KindString {
		lt, eq = l.Str < r.Str, l.Str == r.Str
	} else {
		li, ri := l.AsInt64(), r.AsInt64()
		lt, eq = li < ri, li == ri
	}
	var result bool
	switch op {
	case lexer.Lt:
		result = lt
	case lexer.Le:
		result = lt || eq
	case lexer.Gt:
		result = !lt && !eq
	case lexer.Ge:
		result = !lt
	}
	return Value{Kind: KindBool, Type: ev.Types.Bool, Bool: result}
}

func (ev *Evaluator) widerOf(l, r Value) types.TypeId {
	if l.Type == types.Invalid {
		return r.Type
	}
	if r.Type == types.Invalid {
		return l.Type
	}
	rl, rr := ev.Types.Resolve(l.Type), ev.Types.Resolve(r.Type)
	tl, tr := ev.Types.Get(rl), ev.Types.Get(rr)
	if tl.Kind == types.KindElementary && tr.Kind == types.KindElementary && tr.Elementary.WiderThan(tl.Elementary) {
		return r.Type
	}
	return l.Type
}

func (ev *Evaluator) arith(l, r Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) Value {
	t := ev.widerOf(l, r)
	if l.Kind == KindReal || r.Kind == KindReal {
		return Value{Kind: KindReal, Type: t, Real: floatOp(l.AsFloat64(), r.AsFloat64())}
	}
	return Value{Kind: KindInt, Type: t, Int: intOp(l.AsInt64(), r.AsInt64())}
}

func (ev *Evaluator) power(l, r Value) Value {
	t := ev.widerOf(l, r)
	if l.Kind == KindInt && r.Kind == KindInt && r.Int >= 0 {
		result := int64(1)
		base := l.Int
		for i := int64(0); i < r.Int; i++ {
			result *= base
		}
		return Value{Kind: KindInt, Type: t, Int: result}
	}
	base, exp := l.AsFloat64(), r.AsFloat64()
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0.0; i < exp; i++ {
		result *= base
	}
	if neg {
		result = 1 / result
	}
	return Value{Kind: KindReal, Type: ev.Types.Real, Real: result}
}

// convert coerces v for assignment into a cell of declared type target,
// widening/narrowing numerics and leaving composite values untouched
// (struct/array assignment is copy-by-value via Clone at the call site).
func (ev *Evaluator) convert(v Value, target types.TypeId) Value {
	if target == types.Invalid {
		return v
	}
	rt := ev.Types.Get(ev.Types.Resolve(target))
	switch rt.Kind {
	case types.KindElementary:
		if rt.Elementary.IsFloat() {
			return Value{Kind: KindReal, Type: target, Real: v.AsFloat64()}
		}
		if rt.Elementary == types.ElemBool {
			return Value{Kind: KindBool, Type: target, Bool: v.Kind == KindBool && v.Bool}
		}
		return Value{Kind: KindInt, Type: target, Int: v.AsInt64()}
	case types.KindSubrange:
		conv := ev.convert(v, rt.SubrangeBase)
		conv.Type = target
		return conv
	default:
		out := v.Clone()
		out.Type = target
		return out
	}
}

// --- calls -------------------------------------------------------------------

// evalCall dispatches a CallExpr: user FUNCTION/FUNCTION_BLOCK calls bind
// arguments by name (formal) or position, push a frame, execute the
// body, and pop; calls through an identifier bound to a declared
// instance variable invoke that instance's body against its own fields.
func (ev *Evaluator) evalCall(scope symbols.ScopeId, tree *cst.Tree, n *cst.Node) (Value, error) {
	callee := n.Children[0]
	args := n.Children[1:]

	if callee.Kind != cst.KindIdentExpr {
		return Value{}, NewError(ErrTypeMismatch, tree.Range(n), "unsupported call target")
	}
	name := tree.Text(callee)

	if v, ok, err := ev.evalBuiltinCall(scope, tree, name, args); ok {
		return v, err
	}

	id, err := ev.Table.Resolve(scope, name)
	if err != nil {
		return Value{}, NewError(ErrUndefinedProgram, tree.Range(n), "undefined callable %s", name)
	}
	sym := ev.Table.Sym(id)

	switch sym.Kind {
	case symbols.KindFunction:
		return ev.callFunction(scope, tree, sym, args)
	case symbols.KindVariable, symbols.KindParameter:
		// Calling through an instance variable: FBInstance(in1 := ..., in2 := ...)
		instRef, err := ev.EvalLValue(scope, tree, callee)
		if err != nil {
			return Value{}, err
		}
		return Value{}, ev.callInstance(scope, tree, instRef, sym.Type, args)
	default:
		return Value{}, NewError(ErrUndefinedFunctionBlock, tree.Range(n), "%s is not callable", name)
	}
}

// callFunction binds args into a fresh, self-less frame for a FUNCTION
// symbol's body, executes it, and returns the value assigned to the
// function's own name (the IEC return convention).
func (ev *Evaluator) callFunction(scope symbols.ScopeId, tree *cst.Tree, sym *symbols.Symbol, args []*cst.Node) (Value, error) {
	bodyTree := ev.treeFor(sym)
	bodyScope := sym.NamespaceScope
	f := ev.Storage.PushFrame(sym.Name, NoInstance)
	defer ev.Storage.PopFrame()

	f.SetLocal(sym.Name, Zero(ev.Types, sym.Type))
	if err := ev.bindArgs(scope, tree, bodyScope, f, args); err != nil {
		return Value{}, err
	}

	body, _ := cst.FirstChildOfKind(sym.Node, cst.KindStmtList)
	if body != nil {
		if err := ev.ExecStmtList(bodyScope, bodyTree, body); err != nil && err != signalReturn {
			return Value{}, err
		}
	}
	result, _ := f.GetLocal(sym.Name)
	return result, nil
}

// callInstance executes a FUNCTION_BLOCK/CLASS instance's body against
// its own fields (allocating the instance on first call), then copies
// VAR_OUTPUT parameters back to any `name => target` output connections.
func (ev *Evaluator) callInstance(scope symbols.ScopeId, tree *cst.Tree, instRef *ValueRef, declaredType types.TypeId, args []*cst.Node) error {
	cur := instRef.Get()
	if cur.Kind != KindInstance || cur.Instance == NoInstance {
		typeName := ev.Types.String(ev.Types.Resolve(declaredType))
		id := ev.Storage.CreateInstance(typeName, NoInstance)
		cur = Value{Kind: KindInstance, Type: declaredType, Instance: id}
		instRef.Set(cur)
		ev.initInstanceFields(id, declaredType)
	}

	pouSym, bodyTree, ok := ev.pouSymbolForType(declaredType)
	if !ok {
		return NewError(ErrUndefinedFunctionBlock, lexer.Range{}, "cannot resolve function block body")
	}
	bodyScope := pouSym.NamespaceScope

	f := ev.Storage.PushFrame(pouSym.Name, cur.Instance)
	defer ev.Storage.PopFrame()

	var outputs []*cst.Node
	for _, arg := range args {
		switch arg.Kind {
		case cst.KindFormalArg:
			nameNode, val := arg.Children[0], arg.Children[1]
			pname := tree.Text(nameNode)
			v, err := ev.EvalExpr(scope, tree, val)
			if err != nil {
				return err
			}
			if ref, ok := ev.Storage.LookupVar(cur.Instance, canonicalName(ev.Table, bodyScope, pname)); ok {
				ref.Set(ev.convert(v, ref.Get().Type))
			}
		case cst.KindOutputConnectStmt:
			outputs = append(outputs, arg)
		default:
			// positional binding against VAR_INPUT order
		}
	}
	if len(args) > 0 {
		positional := 0
		params := ev.Table.Params(bodyScope)
		for _, arg := range args {
			if arg.Kind == cst.KindFormalArg || arg.Kind == cst.KindOutputConnectStmt {
				continue
			}
			if positional >= len(params) {
				break
			}
			psym := ev.Table.Sym(params[positional])
			v, err := ev.EvalExpr(scope, tree, arg)
			if err != nil {
				return err
			}
			if ref, ok := ev.Storage.LookupVar(cur.Instance, psym.Name); ok {
				ref.Set(ev.convert(v, ref.Get().Type))
			}
			positional++
		}
	}

	body, _ := cst.FirstChildOfKind(pouSym.Node, cst.KindStmtList)
	if body != nil {
		if err := ev.ExecStmtList(bodyScope, bodyTree, body); err != nil && err != signalReturn {
			return err
		}
	}

	for _, outConn := range outputs {
		nameNode, target := outConn.Children[0], outConn.Children[1]
		pname := canonicalName(ev.Table, bodyScope, tree.Text(nameNode))
		ref, ok := ev.Storage.LookupVar(cur.Instance, pname)
		if !ok {
			continue
		}
		targetRef, err := ev.EvalLValue(scope, tree, target)
		if err != nil {
			return err
		}
		targetRef.Set(ev.convert(ref.Get(), targetRef.Get().Type))
	}
	return nil
}

func canonicalName(table *symbols.Table, scope symbols.ScopeId, name string) string {
	if id, ok := table.LookupLocal(scope, name); ok {
		return table.Sym(id).Name
	}
	return name
}

// initInstanceFields zero-initializes every VAR_INPUT/VAR_OUTPUT/VAR/
// VAR_TEMP symbol declared directly in the FB/class body scope (and,
// through the Extends chain, its ancestors) into the new instance's own
// field storage — ancestor fields live on a parent instance allocated
// alongside it, matching the arena's parent-pointer inheritance model.
func (ev *Evaluator) initInstanceFields(id InstanceId, declaredType types.TypeId) {
	sym, _, ok := ev.pouSymbolForType(declaredType)
	if !ok {
		return
	}
	inst := ev.Storage.GetInstance(id)
	for _, sid := range ev.Table.OrderedSymbols(sym.NamespaceScope) {
		s := ev.Table.Sym(sid)
		if s.Kind != symbols.KindVariable && s.Kind != symbols.KindParameter {
			continue
		}
		inst.SetVar(s.Name, Zero(ev.Types, s.Type))
	}
	resolved := ev.Types.Get(ev.Types.Resolve(declaredType))
	if resolved.Extends != types.Invalid {
		parentID := ev.Storage.CreateInstance(ev.Types.String(resolved.Extends), NoInstance)
		ev.initInstanceFields(parentID, resolved.Extends)
		inst.Parent = parentID
	}
}

// pouSymbolForType finds the FUNCTION_BLOCK/CLASS symbol declaring t and
// the tree its body was parsed from.
func (ev *Evaluator) pouSymbolForType(t types.TypeId) (*symbols.Symbol, *cst.Tree, bool) {
	resolved := ev.Types.Resolve(t)
	for i := range ev.Table.Symbols {
		sym := &ev.Table.Symbols[i]
		if sym.Type == resolved && (sym.Kind == symbols.KindFunctionBlock || sym.Kind == symbols.KindClass || sym.Kind == symbols.KindProgram) {
			return sym, ev.treeFor(sym), true
		}
	}
	return nil, nil, false
}

func (ev *Evaluator) treeFor(sym *symbols.Symbol) *cst.Tree {
	for id, tree := range ev.Trees {
		if ev.Table.Sym(id) == sym {
			return tree
		}
	}
	return nil
}

// bindArgs binds a FUNCTION call's arguments into frame f by name
// (formal) or position against bodyScope's declared parameters, per
// spec §4.5.
func (ev *Evaluator) bindArgs(callerScope symbols.ScopeId, tree *cst.Tree, bodyScope symbols.ScopeId, f *Frame, args []*cst.Node) error {
	params := ev.Table.Params(bodyScope)
	positional := 0
	for _, arg := range args {
		switch arg.Kind {
		case cst.KindFormalArg:
			nameNode, val := arg.Children[0], arg.Children[1]
			pname := canonicalName(ev.Table, bodyScope, tree.Text(nameNode))
			v, err := ev.EvalExpr(callerScope, tree, val)
			if err != nil {
				return err
			}
			var ptype types.TypeId
			if id, ok := ev.Table.LookupLocal(bodyScope, pname); ok {
				ptype = ev.Table.Sym(id).Type
			}
			f.SetLocal(pname, ev.convert(v, ptype))
		default:
			if positional >= len(params) {
				positional++
				continue
			}
			psym := ev.Table.Sym(params[positional])
			v, err := ev.EvalExpr(callerScope, tree, arg)
			if err != nil {
				return err
			}
			f.SetLocal(psym.Name, ev.convert(v, psym.Type))
			positional++
		}
	}
	return nil
}

// evalBuiltinCall resolves the small set of pure standard-library
// functions the evaluator implements directly (ABS, SIZEOF, SQRT,
// TRUNC, ROUND, MIN, MAX, LEN, ADR — the same whitelist `evaluate`
// accepts, spec §4.9 and §5 Open Questions). ok is false when name does
// not name one of these, so the caller falls through to user-symbol
// resolution.
func (ev *Evaluator) evalBuiltinCall(scope symbols.ScopeId, tree *cst.Tree, name string, args []*cst.Node) (Value, bool, error) {
	upper := strings.ToUpper(name)
	eval1 := func() (Value, error) {
		if len(args) != 1 {
			return Value{}, NewError(ErrTypeMismatch, lexer.Range{}, "%s expects exactly 1 argument", upper)
		}
		return ev.EvalExpr(scope, tree, args[0])
	}
	switch upper {
	case "ABS":
		v, err := eval1()
		if err != nil {
			return Value{}, true, err
		}
		if v.Kind == KindReal {
			if v.Real < 0 {
				v.Real = -v.Real
			}
			return v, true, nil
		}
		if v.Int < 0 {
			v.Int = -v.Int
		}
		return v, true, nil
	case "SQRT":
		v, err := eval1()
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KindReal, Type: ev.Types.Real, Real: sqrt(v.AsFloat64())}, true, nil
	case "TRUNC":
		v, err := eval1()
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KindInt, Type: ev.Types.DInt, Int: int64(v.AsFloat64())}, true, nil
	case "ROUND":
		v, err := eval1()
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KindInt, Type: ev.Types.DInt, Int: int64(v.AsFloat64() + 0.5)}, true, nil
	case "SIZEOF":
		if len(args) != 1 {
			return Value{}, true, NewError(ErrTypeMismatch, lexer.Range{}, "SIZEOF expects exactly 1 argument")
		}
		v, err := ev.EvalExpr(scope, tree, args[0])
		if err != nil {
			return Value{}, true, err
		}
		width := 0
		if v.Type != types.Invalid {
			if rt := ev.Types.Get(ev.Types.Resolve(v.Type)); rt.Kind == types.KindElementary {
				width = rt.Elementary.Width() / 8
			}
		}
		return Value{Kind: KindInt, Type: ev.Types.DInt, Int: int64(width)}, true, nil
	case "MIN":
		if len(args) != 2 {
			return Value{}, true, NewError(ErrTypeMismatch, lexer.Range{}, "MIN expects exactly 2 arguments")
		}
		a, err := ev.EvalExpr(scope, tree, args[0])
		if err != nil {
			return Value{}, true, err
		}
		b, err := ev.EvalExpr(scope, tree, args[1])
		if err != nil {
			return Value{}, true, err
		}
		if a.AsFloat64() < b.AsFloat64() {
			return a, true, nil
		}
		return b, true, nil
	case "MAX":
		if len(args) != 2 {
			return Value{}, true, NewError(ErrTypeMismatch, lexer.Range{}, "MAX expects exactly 2 arguments")
		}
		a, err := ev.EvalExpr(scope, tree, args[0])
		if err != nil {
			return Value{}, true, err
		}
		b, err := ev.EvalExpr(scope, tree, args[1])
		if err != nil {
			return Value{}, true, err
		}
		if a.AsFloat64() > b.AsFloat64() {
			return a, true, nil
		}
		return b, true, nil
	case "LEN":
		v, err := eval1()
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KindInt, Type: ev.Types.DInt, Int: int64(len(v.Str))}, true, nil
	case "ADR":
		if len(args) != 1 {
			return Value{}, true, NewError(ErrTypeMismatch, lexer.Range{}, "ADR expects exactly 1 argument")
		}
		ref, err := ev.EvalLValue(scope, tree, args[0])
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KindReference, Ref: ref}, true, nil
	default:
		return Value{}, false, nil
	}
}

func sqrt(x float64) float64 {
	if x < 0 {
		return 0
	}
	guess := x
	if guess == 0 {
		return 0
	}
	for i := 0; i < 30; i++ {
		guess = 0.5 * (guess + x/guess)
	}
	return guess
}
