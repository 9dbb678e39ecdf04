package semantic

import (
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// checkCallArgs implements the call-error catalog of spec §4.4:
// duplicate formal parameter, unknown parameter, output connection
// using `:=` instead of `=>`, mismatched named argument types, a
// positional argument mixed into a formal call, a positional call
// addressing EN/ENO, and (when the callee resolves) invalid argument
// count for an all-positional call.
func (c *Checker) checkCallArgs(scope symbols.ScopeId, call *cst.Node) {
	callee := call.Children[0]
	args := call.Children[1:]

	if callee.Kind != cst.KindIdentExpr {
		return
	}
	calleeId, ok := c.typer.ResolveIdent(scope, callee)
	if !ok {
		return
	}
	calleeSym := c.table.Sym(calleeId)
	if calleeSym.Kind != symbols.KindFunction && calleeSym.Kind != symbols.KindFunctionBlock && calleeSym.Kind != symbols.KindMethod {
		return
	}

	params := c.paramsOf(calleeSym)

	seenFormal := map[string]bool{}
	positionalCount := 0
	usesFormal := false

	for _, arg := range args {
		switch arg.Kind {
		case cst.KindFormalArg, cst.KindOutputConnectStmt:
			usesFormal = true
			nameNode := arg.Children[0]
			name := c.tree.Text(nameNode)
			folded := strings.ToUpper(name)
			if seenFormal[folded] {
				c.add(Diagnostic{Code: CodeDuplicateFormalParameter, Severity: SeverityError,
					Message: "duplicate argument " + name, Range: c.tree.Range(arg)})
			}
			seenFormal[folded] = true

			param, found := findParam(params, name)
			if !found {
				c.add(Diagnostic{Code: CodeUnknownParameter, Severity: SeverityError,
					Message: "unknown parameter " + name, Range: c.tree.Range(arg)})
				continue
			}
			isOutputConn := arg.Kind == cst.KindOutputConnectStmt
			if param.ParamDir == symbols.ParamOut && !isOutputConn {
				c.add(Diagnostic{Code: CodeOutputConnectionMisuse, Severity: SeverityError,
					Message: "output parameter " + name + " must be connected with =>", Range: c.tree.Range(arg)})
			}
			if param.ParamDir != symbols.ParamOut && isOutputConn {
				c.add(Diagnostic{Code: CodeOutputConnectionMisuse, Severity: SeverityError,
					Message: name + " is not an output parameter", Range: c.tree.Range(arg)})
			}
			if !isOutputConn && len(arg.Children) > 1 {
				c.checkArgType(scope, name, param, arg.Children[1])
			}
		default:
			positionalCount++
		}
	}

	if usesFormal && positionalCount > 0 {
		c.add(Diagnostic{Code: CodeArgumentTypeMismatch, Severity: SeverityError,
			Message: "cannot mix positional and named arguments in the same call", Range: c.tree.Range(call)})
	}

	if !usesFormal && len(params) > 0 {
		realParams := positionalParams(params)
		switch {
		case positionalCount > len(params):
			c.add(Diagnostic{Code: CodeInvalidArgumentCount, Severity: SeverityError,
				Message: "too many positional arguments", Range: c.tree.Range(call)})
		case positionalCount > len(realParams):
			c.add(Diagnostic{Code: CodePositionalSkipsENEO, Severity: SeverityError,
				Message: "a positional call cannot address EN/ENO; bind them with formal arguments", Range: c.tree.Range(call)})
		}
	}

	for _, p := range params {
		if p.ParamDir == symbols.ParamInOut && !seenFormal[strings.ToUpper(p.Name)] && usesFormal {
			c.add(Diagnostic{Code: CodeMissingInOutBinding, Severity: SeverityError,
				Message: "missing binding for in-out parameter " + p.Name, Range: c.tree.Range(call)})
		}
	}
}

// checkArgType compares a formal argument's value expression type
// against its parameter's declared type, the spec §4.4 "mismatched
// named argument types" check.
func (c *Checker) checkArgType(scope symbols.ScopeId, name string, param *symbols.Symbol, valExpr *cst.Node) {
	if param.Type == types.Invalid {
		return
	}
	argType := c.typer.TypeOf(scope, valExpr)
	if argType == types.Invalid {
		return
	}
	if c.reg.Check(param.Type, argType) == types.Incompatible {
		c.add(Diagnostic{Code: CodeArgumentTypeMismatch, Severity: SeverityError,
			Message: "cannot pass " + c.reg.String(argType) + " as " + name + " (" + c.reg.String(param.Type) + ")",
			Range: c.tree.Range(valExpr)})
	}
}

// positionalParams excludes EN (BOOL input) / ENO (BOOL output) from
// params: a positional call may never address either, so they never
// occupy a positional slot.
func positionalParams(params []*symbols.Symbol) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, p := range params {
		if p.ParamDir == symbols.ParamIn && strings.EqualFold(p.Name, "EN") {
			continue
		}
		if p.ParamDir == symbols.ParamOut && strings.EqualFold(p.Name, "ENO") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Checker) paramsOf(calleeSym *symbols.Symbol) []*symbols.Symbol {
	var out []*symbols.Symbol
	for name, id := range c.table.Scopes[calleeSym.NamespaceScope].Names {
		sym := c.table.Sym(id)
		if sym.Kind == symbols.KindParameter {
			out = append(out, sym)
		}
		_ = name
	}
	return out
}

func findParam(params []*symbols.Symbol, name string) (*symbols.Symbol, bool) {
	for _, p := range params {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}
