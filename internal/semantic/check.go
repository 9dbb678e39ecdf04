package semantic

import (
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// Checker walks one POU body, emitting the type/range/call/control-flow
// diagnostics of spec §4.4. One Checker is built per POU so usage
// tracking (which locals got referenced) never leaks between bodies.
type Checker struct {
	table *symbols.Table
	reg   *types.Registry
	tree  *cst.Tree
	typer *ExprTyper
	diags *[]Diagnostic

	used        map[symbols.SymbolId]bool
	branchCount int
	funcSym     symbols.SymbolId // not set or read; checkAssignTarget identifies the enclosing FUNCTION by its body scope
	isFunction  bool
	returnType  types.TypeId // the enclosing FUNCTION's declared return type, for CodeInvalidReturnType
}

func newChecker(table *symbols.Table, reg *types.Registry, tree *cst.Tree, diags *[]Diagnostic) *Checker {
	return &Checker{
		table: table,
		reg:   reg,
		tree:  tree,
		typer: NewExprTyper(table, reg, tree, diags),
		diags: diags,
		used:  map[symbols.SymbolId]bool{},
	}
}

func (c *Checker) add(d Diagnostic) { *c.diags = append(*c.diags, d) }

// CheckPOUBody runs every statement/expression check over body within
// scope, where pouSym is the declaring POU symbol (its kind and type
// drive the RETURN type check, and its node is the range of the
// complexity warning). Unused locals are reported from scope.
func (c *Checker) CheckPOUBody(scope symbols.ScopeId, pouSym *symbols.Symbol, body *cst.Node) {
	c.isFunction = pouSym.Kind == symbols.KindFunction
	c.returnType = types.Invalid
	if c.isFunction {
		c.returnType = pouSym.Type
	}
	c.branchCount = 1
	if body != nil {
		c.checkStmtList(scope, body)
	}
	if c.branchCount >= CyclomaticThreshold {
		c.add(Diagnostic{Code: CodeHighCyclomaticComplexity, Severity: SeverityWarning,
			Message: "cyclomatic complexity is high", Range: c.tree.Range(pouSym.Node)})
	}
	c.reportUnused(scope)
}

func (c *Checker) reportUnused(scope symbols.ScopeId) {
	for name, id := range c.table.Scopes[scope].Names {
		sym := c.table.Sym(id)
		if c.used[id] {
			continue
		}
		switch sym.Kind {
		case symbols.KindVariable:
			if sym.VarQual == VarLocalQual() {
				c.add(Diagnostic{Code: CodeUnusedVariable, Severity: SeverityWarning,
					Message: "unused variable " + name, Range: sym.Range})
			}
		case symbols.KindParameter:
			c.add(Diagnostic{Code: CodeUnusedParameter, Severity: SeverityWarning,
				Message: "unused parameter " + name, Range: sym.Range})
		}
	}
}

// VarLocalQual returns symbols.VarLocal, the qualifier of a plain VAR
// declaration.
func VarLocalQual() symbols.VarQualifier { return symbols.VarLocal }

func (c *Checker) checkStmtList(scope symbols.ScopeId, list *cst.Node) {
	terminated := false
	for _, stmt := range cst.StatementsOf(list) {
		if terminated {
			c.add(Diagnostic{Code: CodeUnreachableCode, Severity: SeverityWarning,
				Message: "unreachable code", Range: c.tree.Range(stmt)})
		}
		c.checkStmt(scope, stmt)
		if stmt.Kind == cst.KindReturnStmt || stmt.Kind == cst.KindExitStmt {
			terminated = true
		}
	}
}

func (c *Checker) checkStmt(scope symbols.ScopeId, n *cst.Node) {
	switch n.Kind {
	case cst.KindAssignStmt:
		c.checkAssign(scope, n)
	case cst.KindIfStmt:
		c.checkIf(scope, n)
	case cst.KindCaseStmt:
		c.checkCase(scope, n)
	case cst.KindForStmt:
		c.branchCount++
		c.checkFor(scope, n)
	case cst.KindWhileStmt:
		c.branchCount++
		c.checkWhileRepeat(scope, n, 0)
	case cst.KindRepeatStmt:
		c.branchCount++
		c.checkWhileRepeat(scope, n, len(n.Children)-1)
	case cst.KindCallStmt:
		c.markUsedIn(scope, n)
		c.checkCallArgs(scope, n.Children[0])
	case cst.KindReturnStmt:
		c.checkReturn(scope, n)
	case cst.KindExitStmt, cst.KindContinueStmt:
		// no sub-expressions to check
	case cst.KindQAssignExpr:
		c.checkQAssign(scope, n)
	default:
		c.markUsedIn(scope, n)
	}
}

// checkReturn type-checks a RETURN's optional expression (a
// non-standard `RETURN expr;` form this dialect parses alongside the
// ordinary function-name assignment) against the enclosing FUNCTION's
// declared return type (spec §4.4 "invalid return type").
func (c *Checker) checkReturn(scope symbols.ScopeId, n *cst.Node) {
	if len(n.Children) == 0 {
		return
	}
	expr := n.Children[0]
	c.markUsedIn(scope, expr)
	if !c.isFunction || c.returnType == types.Invalid {
		return
	}
	rt := c.typer.TypeOf(scope, expr)
	if rt == types.Invalid {
		return
	}
	if c.reg.Check(c.returnType, rt) == types.Incompatible {
		c.add(Diagnostic{Code: CodeInvalidReturnType, Severity: SeverityError,
			Message: "cannot return " + c.reg.String(rt) + " from a function declared " + c.reg.String(c.returnType),
			Range: c.tree.Range(expr)})
	}
}

// checkQAssign rejects `?=` whose left side does not resolve to a
// REFERENCE TO-typed lvalue (spec §4.4 "`?=` on non-reference"); the
// evaluator already performs the runtime assignment unconditionally.
func (c *Checker) checkQAssign(scope symbols.ScopeId, n *cst.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	c.markUsedIn(scope, lhs)
	c.markUsedIn(scope, rhs)

	lt := c.typer.TypeOf(scope, lhs)
	if lt == types.Invalid {
		return
	}
	if c.reg.Get(c.reg.Resolve(lt)).Kind != types.KindReference {
		c.add(Diagnostic{Code: CodeQAssignOnNonReference, Severity: SeverityError,
			Message: "?= requires a REFERENCE TO lvalue, got " + c.reg.String(lt), Range: c.tree.Range(n)})
	}
}

func (c *Checker) checkAssign(scope symbols.ScopeId, n *cst.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	c.checkAssignTarget(scope, lhs)
	c.markUsedIn(scope, lhs)
	c.markUsedIn(scope, rhs)

	lt := c.typer.TypeOf(scope, lhs)
	rt := c.typer.TypeOf(scope, rhs)
	if lt == types.Invalid || rt == types.Invalid {
		return
	}
	switch c.reg.Check(lt, rt) {
	case types.Incompatible:
		c.add(Diagnostic{Code: CodeIncompatibleAssignment, Severity: SeverityError,
			Message: "cannot assign " + c.reg.String(rt) + " to " + c.reg.String(lt), Range: c.tree.Range(n)})
	case types.NarrowingWarn:
		if !c.typer.IsUntypedIntLiteral(rhs) {
			c.add(Diagnostic{Code: CodeImplicitConversion, Severity: SeverityWarning,
				Message: "implicit narrowing conversion from " + c.reg.String(rt) + " to " + c.reg.String(lt), Range: c.tree.Range(n)})
		}
		c.checkSubrangeLiteral(scope, lt, rhs, n)
	case types.WideningOK, types.Exact:
		c.checkSubrangeLiteral(scope, lt, rhs, n)
	}
}

// checkSubrangeLiteral checks a constant integer literal assigned to a
// subrange-typed lvalue against the subrange's folded bounds.
func (c *Checker) checkSubrangeLiteral(scope symbols.ScopeId, lt types.TypeId, rhs, n *cst.Node) {
	v, ok := evalConstIntExpr(c.tree, rhs)
	if !ok {
		return
	}
	if !c.reg.InSubrange(lt, v) {
		c.add(Diagnostic{Code: CodeSubrangeOutOfBounds, Severity: SeverityError,
			Message: "literal is out of the declared subrange", Range: c.tree.Range(n)})
	}
}

// checkAssignTarget rejects assignment targets forbidden by spec §4.4:
// a VAR_INPUT parameter, THIS, a property without a setter, or the
// function's own name used outside that function's body.
func (c *Checker) checkAssignTarget(scope symbols.ScopeId, lhs *cst.Node) {
	if lhs.Kind != cst.KindIdentExpr {
		return
	}
	name := c.tree.Text(lhs)
	if strings.EqualFold(name, "THIS") {
		c.add(Diagnostic{Code: CodeInvalidAssignmentTarget, Severity: SeverityError,
			Message: "cannot assign to THIS", Range: c.tree.Range(lhs)})
		return
	}
	id, ok := c.typer.ResolveIdent(scope, lhs)
	if !ok {
		return
	}
	sym := c.table.Sym(id)
	if sym.Kind == symbols.KindParameter && sym.ParamDir == symbols.ParamIn {
		c.add(Diagnostic{Code: CodeInvalidAssignmentTarget, Severity: SeverityError,
			Message: "cannot assign to input parameter " + name, Range: c.tree.Range(lhs)})
	}
	if sym.Kind == symbols.KindProperty && !hasSetAccessor(sym.Node) {
		c.add(Diagnostic{Code: CodeInvalidAssignmentTarget, Severity: SeverityError,
			Message: "property " + name + " has no SET accessor", Range: c.tree.Range(lhs)})
	}
	if sym.Kind == symbols.KindFunction && sym.NamespaceScope != scope {
		c.add(Diagnostic{Code: CodeInvalidAssignmentTarget, Severity: SeverityError,
			Message: "cannot assign to function " + name + " outside its own body", Range: c.tree.Range(lhs)})
	}
}

// hasSetAccessor reports whether a PROPERTY declaration node has a SET
// accessor.
func hasSetAccessor(propertyNode *cst.Node) bool {
	if propertyNode == nil {
		return false
	}
	_, ok := cst.FirstChildOfKind(propertyNode, cst.KindPropertySet)
	return ok
}

// checkIf walks an IfStmt's [cond, thenList, (elsifCond, elsifList)*,
// elseList?] children, checking every condition for BOOL type and
// every body as its own statement list.
func (c *Checker) checkIf(scope symbols.ScopeId, n *cst.Node) {
	c.checkIfCondition(scope, n.Children[0], n)
	c.branchCount++
	c.checkStmtList(scope, n.Children[1])

	i := 2
	for i+1 < len(n.Children) && n.Children[i].Kind != cst.KindStmtList {
		c.checkIfCondition(scope, n.Children[i], n.Children[i])
		c.branchCount++
		c.checkStmtList(scope, n.Children[i+1])
		i += 2
	}
	if i < len(n.Children) && n.Children[i].Kind == cst.KindStmtList {
		c.branchCount++
		c.checkStmtList(scope, n.Children[i])
	}
}

func (c *Checker) checkIfCondition(scope symbols.ScopeId, cond, reportOn *cst.Node) {
	c.markUsedIn(scope, cond)
	ct := c.typer.TypeOf(scope, cond)
	if ct != types.Invalid && c.reg.Resolve(ct) != c.reg.Bool {
		c.add(Diagnostic{Code: CodeConditionNotBoolean, Severity: SeverityError,
			Message: "condition must be BOOL", Range: c.tree.Range(cond)})
	}
	if cond.Kind == cst.KindBoolLiteral && c.tree.Text(cond) == "FALSE" {
		c.add(Diagnostic{Code: CodeLiteralFalseBranch, Severity: SeverityWarning,
			Message: "branch is never taken: condition is literal FALSE", Range: c.tree.Range(reportOn)})
	}
}

func (c *Checker) checkCase(scope symbols.ScopeId, n *cst.Node) {
	selector := n.Children[0]
	c.markUsedIn(scope, selector)
	hasElse := false
	for _, branch := range n.Children[1:] {
		if branch.Kind != cst.KindCaseBranch {
			continue
		}
		c.branchCount++
		for _, bc := range branch.Children {
			if bc.Kind == cst.KindStmtList {
				c.checkStmtList(scope, bc)
			}
		}
	}
	if t := c.reg.Resolve(c.typer.TypeOf(scope, selector)); t != types.Invalid && c.reg.Get(t).Kind == types.KindEnum {
		hasElse = true // exhaustiveness over a known enum selector is not modeled; suppress the warning conservatively
	}
	if !hasElse && !c.hasElseBranch(n) {
		c.add(Diagnostic{Code: CodeCaseWithoutElse, Severity: SeverityWarning,
			Message: "CASE has no ELSE branch", Range: c.tree.Range(n)})
	}
}

func (c *Checker) hasElseBranch(n *cst.Node) bool {
	for i := n.StartTok; i <= n.EndTok && i < len(c.tree.Tokens); i++ {
		if c.tree.Tokens[i].Kind == lexer.KwElse {
			return true
		}
	}
	return false
}

func (c *Checker) checkFor(scope symbols.ScopeId, n *cst.Node) {
	for _, child := range n.Children {
		if child.Kind == cst.KindStmtList {
			c.checkStmtList(scope, child)
		} else {
			c.markUsedIn(scope, child)
		}
	}
}

func (c *Checker) checkWhileRepeat(scope symbols.ScopeId, n *cst.Node, condIdx int) {
	for i, child := range n.Children {
		if child.Kind == cst.KindStmtList {
			c.checkStmtList(scope, child)
			continue
		}
		c.markUsedIn(scope, child)
		if i == condIdx {
			ct := c.typer.TypeOf(scope, child)
			if ct != types.Invalid && c.reg.Resolve(ct) != c.reg.Bool {
				c.add(Diagnostic{Code: CodeConditionNotBoolean, Severity: SeverityError,
					Message: "loop condition must be BOOL", Range: c.tree.Range(child)})
			}
		}
	}
}

// markUsedIn walks every identifier under n, marking its resolved
// symbol used and running call-argument checks on every call
// encountered, without re-descending into statement lists (those are
// walked by their own checkStmt/checkStmtList dispatch).
func (c *Checker) markUsedIn(scope symbols.ScopeId, n *cst.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case cst.KindStmtList:
		return
	case cst.KindIdentExpr:
		if id, ok := c.typer.ResolveIdent(scope, n); ok {
			c.used[id] = true
		}
		return
	case cst.KindCallExpr:
		c.checkCallArgs(scope, n)
	case cst.KindIndexExpr:
		c.checkIndexBounds(scope, n)
	}
	for _, child := range n.Children {
		c.markUsedIn(scope, child)
	}
}
