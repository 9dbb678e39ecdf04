package debug

import (
	"fmt"
	"strings"

	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/symbols"
)

// evalConditionSource parses and evaluates a bare expression source
// against scope/ev, the one entry point shared by breakpoint
// conditions, log-message {expr} fragments, and watch expressions.
// Parse or evaluation failures are returned as an error rather than a
// panic; callers treat a failing condition as false (spec §4.8:
// "evaluate it against current storage (errors -> treat as false, not
// a fault)") and swallow failing log/watch expressions into the log
// channel only (spec §7: "The debug hook is not a source of errors").
func evalConditionSource(ev *runtime.Evaluator, scope symbols.ScopeId, src string) (runtime.Value, error) {
	tree, diags := parser.ParseStandaloneExpr(src)
	if len(diags) > 0 {
		return runtime.Value{}, fmt.Errorf("parse error in %q: %s", src, diags[0].Message)
	}
	return ev.EvalExpr(scope, tree, tree.Root)
}

// evalConditionBool is evalConditionSource narrowed to the boolean
// result a breakpoint condition needs; any non-bool result or error is
// "false".
func evalConditionBool(ev *runtime.Evaluator, scope symbols.ScopeId, src string) bool {
	v, err := evalConditionSource(ev, scope, src)
	if err != nil {
		return false
	}
	return v.Kind == runtime.KindBool && v.Bool
}

// parseLogMessage splits a log-point message into literal-text and
// `{expr}` fragments, honoring `{{`/`}}` as literal brace escapes (spec
// §4.8 "format it (literal text and {expr} fragments, {{ and }}
// escapes)", called out again in SPEC_FULL.md §4 as easy to
// under-implement with a naive substitution).
func parseLogMessage(msg string) []LogFragment {
	var frags []LogFragment
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			frags = append(frags, LogFragment{Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(msg) {
		switch {
		case strings.HasPrefix(msg[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(msg[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case msg[i] == '{':
			end := strings.IndexByte(msg[i+1:], '}')
			if end < 0 {
				lit.WriteString(msg[i:])
				i = len(msg)
				break
			}
			flushLit()
			frags = append(frags, LogFragment{Expr: msg[i+1 : i+1+end]})
			i += end + 2
		default:
			lit.WriteByte(msg[i])
			i++
		}
	}
	flushLit()
	return frags
}

// formatLogMessage renders frags against ev/scope, substituting each
// {expr} fragment with its evaluated value's display text. An
// expression that fails to evaluate renders as "<error>" rather than
// aborting the whole message.
func formatLogMessage(ev *runtime.Evaluator, scope symbols.ScopeId, frags []LogFragment) string {
	var sb strings.Builder
	for _, f := range frags {
		if f.Expr == "" {
			sb.WriteString(f.Text)
			continue
		}
		v, err := evalConditionSource(ev, scope, f.Expr)
		if err != nil {
			sb.WriteString("<error>")
			continue
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}
