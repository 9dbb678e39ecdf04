package dap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stplatform/st-platform/internal/debug"
)

// parseHitCondition parses a breakpoint's `hitCondition` text
// (spec/SPEC_FULL.md §4 "==N, >=N, >N, whitespace optional") into a
// debug.HitCondition, duplicated here rather than imported since
// debug's own parsing helper is unexported (it is reached only through
// Control's breakpoint-setting API, not a parser entry point).
func parseHitCondition(s string) (*debug.HitCondition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	op := debug.HitEQ
	rest := s
	switch {
	case strings.HasPrefix(s, ">="):
		op, rest = debug.HitGE, s[2:]
	case strings.HasPrefix(s, "=="):
		op, rest = debug.HitEQ, s[2:]
	case strings.HasPrefix(s, ">"):
		op, rest = debug.HitGT, s[1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return nil, fmt.Errorf("invalid hit condition %q", s)
	}
	return &debug.HitCondition{Op: op, Value: n}, nil
}

// parseLogMessage splits msg into literal/`{expr}` fragments honoring
// `{{`/`}}` escapes, the same algorithm internal/debug/expr.go's
// unexported parseLogMessage implements, duplicated here for the same
// reason as parseHitCondition.
func parseLogMessage(msg string) []debug.LogFragment {
	var frags []debug.LogFragment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			frags = append(frags, debug.LogFragment{Text: lit.String()})
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
				continue
			}
			flush()
			frags = append(frags, debug.LogFragment{Expr: msg[i+1 : i+1+end]})
			i += end + 2
		default:
			lit.WriteByte(msg[i])
			i++
		}
	}
	flush()
	return frags
}

// sourcePath extracts the `source.path` (falling back to `source.name`)
// a setBreakpoints/breakpointLocations request names.
func sourcePath(args gjson.Result) string {
	if p := args.Get("source.path").String(); p != "" {
		return p
	}
	return args.Get("source.name").String()
}

func handleSetBreakpoints(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	path := sourcePath(args)
	tree, ok := a.sess.trees[path]
	if !ok {
		return "", fmt.Errorf("source not registered: %s", path)
	}
	locs := statementLocations(tree)

	resp := "[]"
	var installed []*debug.Breakpoint
	for _, bp := range args.Get("breakpoints").Array() {
		line := int(bp.Get("line").Int())
		column := int(bp.Get("column").Int())
		if column == 0 {
			column = 1
		}
		column = snapColumn(tree.Source, line, column)
		offset := offsetForLineColumn(tree.Source, line, column)

		entry := newOutMessage().set("line", line).set("column", column)
		if offset < 0 {
			entry.set("verified", false).set("message", "line out of range")
			resp = appendRaw(resp, entry.String())
			continue
		}
		loc, found := nearestStatementAtOrAfter(locs, offset)
		if !found {
			entry.set("verified", false).set("message", "no statement at or after requested location")
			resp = appendRaw(resp, entry.String())
			continue
		}

		hit, herr := parseHitCondition(bp.Get("hitCondition").String())
		if herr != nil {
			entry.set("verified", false).set("message", herr.Error())
			resp = appendRaw(resp, entry.String())
			continue
		}
		var logFrags []debug.LogFragment
		if lm := bp.Get("logMessage").String(); lm != "" {
			logFrags = parseLogMessage(lm)
		}

		installed = append(installed, &debug.Breakpoint{
			File: path, Start: loc.Start.Offset, End: loc.End.Offset,
			Condition: bp.Get("condition").String(), Hit: hit, LogMessage: logFrags,
		})
		entry.set("verified", true).set("line", loc.Start.Line).set("column", loc.Start.Column)
		resp = appendRaw(resp, entry.String())
	}

	a.sess.control.SetBreakpoints(path, installed)
	return newOutMessage().setRaw("breakpoints", resp).String(), nil
}

func handleBreakpointLocations(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	path := sourcePath(args)
	tree, ok := a.sess.trees[path]
	if !ok {
		return "", fmt.Errorf("source not registered: %s", path)
	}
	line := int(args.Get("line").Int())
	locs := statementsOnLine(statementLocations(tree), line)

	resp := "[]"
	for _, loc := range locs {
		resp = appendRaw(resp, newOutMessage().
			set("line", loc.Start.Line).set("column", loc.Start.Column).
			set("endLine", loc.End.Line).set("endColumn", loc.End.Column).String())
	}
	return newOutMessage().setRaw("breakpoints", resp).String(), nil
}
