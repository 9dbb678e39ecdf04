package dap

import (
	"sort"
	"strings"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// isStatementKind reports whether k is one of the node kinds the
// evaluator's statement hook fires on (the ExecStmt switch in
// internal/runtime/evaluator.go), i.e. a node that can legally carry a
// breakpoint.
func isStatementKind(k cst.Kind) bool {
	switch k {
	case cst.KindAssignStmt, cst.KindOutputConnectStmt, cst.KindIfStmt, cst.KindCaseStmt,
		cst.KindForStmt, cst.KindWhileStmt, cst.KindRepeatStmt, cst.KindExitStmt,
		cst.KindContinueStmt, cst.KindReturnStmt, cst.KindCallStmt, cst.KindQAssignExpr:
		return true
	default:
		return false
	}
}

// statementLocations collects every statement-kind node in tree, in
// source order, each paired with its byte range. Nested statements
// (inside IF/WHILE/FOR/CASE bodies) are included: the evaluator invokes
// the debug hook on each of them independently as it recurses.
func statementLocations(tree *cst.Tree) []lexer.Range {
	var out []lexer.Range
	cst.Walk(tree.Root, func(n *cst.Node) {
		if isStatementKind(n.Kind) {
			out = append(out, tree.Range(n))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Offset < out[j].Start.Offset })
	return out
}

// firstNonWhitespaceColumn returns the 1-based rune column of the first
// non-whitespace character in line, or len(line runes)+1 if line is
// entirely whitespace.
func firstNonWhitespaceColumn(line string) int {
	col := 1
	for _, r := range line {
		if r != ' ' && r != '\t' {
			return col
		}
		col++
	}
	return col
}

// offsetForLineColumn converts a 1-based (line, column) position (rune
// column, matching lexer.Position's convention) into a byte offset into
// source. Returns -1 if line is out of range.
func offsetForLineColumn(source string, line, column int) int {
	lines := strings.SplitAfter(source, "\n")
	if line < 1 || line > len(lines) {
		return -1
	}
	offset := 0
	for i := 0; i < line-1; i++ {
		offset += len(lines[i])
	}
	lineText := strings.TrimSuffix(strings.TrimSuffix(lines[line-1], "\n"), "\r")
	col := 1
	for i, r := range lineText {
		if col == column {
			return offset + i
		}
		col++
		_ = r
	}
	return offset + len(lineText)
}

// lineOf returns the 1-based line text for line (1-based) of source, or
// "" if out of range.
func lineOf(source string, line int) string {
	lines := strings.SplitAfter(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSuffix(lines[line-1], "\n"), "\r")
}

// snapColumn applies the "column snapped to the first non-whitespace
// column if the request pointed into leading whitespace" rule of spec
// §4.9 setBreakpoints.
func snapColumn(source string, line, column int) int {
	nw := firstNonWhitespaceColumn(lineOf(source, line))
	if column < nw {
		return nw
	}
	return column
}

// nearestStatementAtOrAfter returns the first statement location whose
// start offset is >= target, or false if none exists (spec §4.9: "ask
// the semantic index for the nearest statement at or after the
// position -- if none, return the breakpoint as unverified").
func nearestStatementAtOrAfter(locs []lexer.Range, target int) (lexer.Range, bool) {
	for _, r := range locs {
		if r.Start.Offset >= target {
			return r, true
		}
	}
	return lexer.Range{}, false
}

// statementsOnLine returns every statement location starting on line,
// for the breakpointLocations response (spec §4.9: "return the starts
// of all statements on the requested line").
func statementsOnLine(locs []lexer.Range, line int) []lexer.Range {
	var out []lexer.Range
	for _, r := range locs {
		if r.Start.Line == line {
			out = append(out, r)
		}
	}
	return out
}
