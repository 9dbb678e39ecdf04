package parser

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// parseStmtList parses statements until the closing keyword is the next
// significant token (or EOF). It implements the "statement list end is
// detected by the set of END_* keywords that close the current
// construct" rule for the simple single-keyword case used by POU bodies;
// constructs with multiple possible terminators (IF/CASE/FOR/WHILE/
// REPEAT) call parseStmtListUntil with a richer predicate instead.
func (p *Parser) parseStmtList(closeKind lexer.Kind) *cst.Node {
	return p.parseStmtListUntil(func() bool { return p.atKind(closeKind) })
}

func (p *Parser) parseStmtListUntil(stop func() bool) *cst.Node {
	start := p.firstSigIdx()
	var stmts []*cst.Node
	for !stop() && !p.atEOF() {
		before := p.pos
		stmts = append(stmts, p.parseStmt())
		if p.pos == before {
			p.advance()
		}
	}
	if len(stmts) == 0 {
		return cst.NewNode(cst.KindStmtList, start, start-1)
	}
	return cst.NewNode(cst.KindStmtList, start, stmts[len(stmts)-1].EndTok, stmts...)
}

func (p *Parser) parseStmt() *cst.Node {
	switch {
	case p.atKind(lexer.KwIf):
		return p.parseIfStmt()
	case p.atKind(lexer.KwCase):
		return p.parseCaseStmt()
	case p.atKind(lexer.KwFor):
		return p.parseForStmt()
	case p.atKind(lexer.KwWhile):
		return p.parseWhileStmt()
	case p.atKind(lexer.KwRepeat):
		return p.parseRepeatStmt()
	case p.atKind(lexer.KwExit):
		start := p.nextSig()
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindExitStmt, start, end)
	case p.atKind(lexer.KwContinue):
		start := p.nextSig()
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindContinueStmt, start, end)
	case p.atKind(lexer.KwReturn):
		start := p.nextSig()
		var children []*cst.Node
		if !p.atKind(lexer.Semicolon) {
			children = append(children, p.parseExpr(0))
		}
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindReturnStmt, start, end, children...)
	case p.atKind(lexer.Semicolon):
		// empty statement
		idx := p.nextSig()
		return cst.NewNode(cst.KindStmtList, idx, idx)
	default:
		return p.parseExprOrAssignStmt()
	}
}

// parseExprOrAssignStmt parses `lvalue := expr;`, `lvalue ?= expr;`, or a
// bare call statement `Name(args);`, disambiguating after parsing the
// left-hand expression.
func (p *Parser) parseExprOrAssignStmt() *cst.Node {
	lhs := p.parseExpr(0)
	switch {
	case p.atKind(lexer.Assign):
		p.expect(lexer.Assign)
		rhs := p.parseExpr(0)
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindAssignStmt, lhs.StartTok, end, lhs, rhs)
	case p.atKind(lexer.QuestionAssign):
		p.expect(lexer.QuestionAssign)
		rhs := p.parseExpr(0)
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindQAssignExpr, lhs.StartTok, end, lhs, rhs)
	default:
		end := p.expect(lexer.Semicolon)
		return cst.NewNode(cst.KindCallStmt, lhs.StartTok, end, lhs)
	}
}

// parseIfStmt parses `IF c THEN stmts (ELSIF c THEN stmts)* (ELSE stmts)? END_IF`.
func (p *Parser) parseIfStmt() *cst.Node {
	start := p.nextSig() // IF
	var children []*cst.Node
	children = append(children, p.parseExpr(0))
	p.expect(lexer.KwThen)
	children = append(children, p.parseStmtListUntil(func() bool {
		return p.atKind(lexer.KwElsif) || p.atKind(lexer.KwElse) || p.atKind(lexer.KwEndIf)
	}))
	for p.atKind(lexer.KwElsif) {
		p.nextSig()
		children = append(children, p.parseExpr(0))
		p.expect(lexer.KwThen)
		children = append(children, p.parseStmtListUntil(func() bool {
			return p.atKind(lexer.KwElsif) || p.atKind(lexer.KwElse) || p.atKind(lexer.KwEndIf)
		}))
	}
	if p.atKind(lexer.KwElse) {
		p.nextSig()
		children = append(children, p.parseStmtListUntil(func() bool { return p.atKind(lexer.KwEndIf) }))
	}
	end := p.expect(lexer.KwEndIf)
	return cst.NewNode(cst.KindIfStmt, start, end, children...)
}

// parseCaseStmt parses `CASE sel OF label{,label}*: stmts ... (ELSE stmts)? END_CASE`.
func (p *Parser) parseCaseStmt() *cst.Node {
	start := p.nextSig() // CASE
	var children []*cst.Node
	children = append(children, p.parseExpr(0))
	p.expect(lexer.KwOf)
	for !p.atKind(lexer.KwElse) && !p.atKind(lexer.KwEndCase) && !p.atEOF() {
		children = append(children, p.parseCaseBranch())
	}
	if p.atKind(lexer.KwElse) {
		p.nextSig()
		children = append(children, p.parseStmtListUntil(func() bool { return p.atKind(lexer.KwEndCase) }))
	}
	end := p.expect(lexer.KwEndCase)
	return cst.NewNode(cst.KindCaseStmt, start, end, children...)
}

func (p *Parser) parseCaseBranch() *cst.Node {
	startNode := p.parseExpr(0)
	labels := []*cst.Node{startNode}
	for p.atKind(lexer.Comma) {
		p.nextSig()
		labels = append(labels, p.parseExpr(0))
	}
	p.expect(lexer.Colon)
	body := p.parseStmtListUntil(func() bool {
		return isCaseLabelStartOrEnd(p)
	})
	return cst.NewNode(cst.KindCaseBranch, labels[0].StartTok, body.EndTok, append(labels, body)...)
}

// isCaseLabelStartOrEnd is a heuristic stop predicate for a CASE
// branch's statement list: stop at ELSE/END_CASE, or when the current
// token could only begin a new label (an int/enum literal or ident
// immediately followed by ':' or ',').
func isCaseLabelStartOrEnd(p *Parser) bool {
	if p.atKind(lexer.KwElse) || p.atKind(lexer.KwEndCase) {
		return true
	}
	next := 1
	switch p.peekSig(0).Kind {
	case lexer.IntLiteral, lexer.Ident:
	case lexer.TypedLiteralPrefix:
		next = 2 // `Enum#Value` spans two tokens
	default:
		return false
	}
	k := p.peekSig(next).Kind
	return k == lexer.Colon || k == lexer.Comma
}

func (p *Parser) parseForStmt() *cst.Node {
	start := p.nextSig() // FOR
	var children []*cst.Node
	children = append(children, p.parseIdentExprLeaf())
	p.expect(lexer.Assign)
	children = append(children, p.parseExpr(0))
	p.expect(lexer.KwTo)
	children = append(children, p.parseExpr(0))
	if p.atKind(lexer.KwBy) {
		p.nextSig()
		children = append(children, p.parseExpr(0))
	}
	p.expect(lexer.KwDo)
	children = append(children, p.parseStmtListUntil(func() bool { return p.atKind(lexer.KwEndFor) }))
	end := p.expect(lexer.KwEndFor)
	return cst.NewNode(cst.KindForStmt, start, end, children...)
}

func (p *Parser) parseWhileStmt() *cst.Node {
	start := p.nextSig() // WHILE
	cond := p.parseExpr(0)
	p.expect(lexer.KwDo)
	body := p.parseStmtListUntil(func() bool { return p.atKind(lexer.KwEndWhile) })
	end := p.expect(lexer.KwEndWhile)
	return cst.NewNode(cst.KindWhileStmt, start, end, cond, body)
}

func (p *Parser) parseRepeatStmt() *cst.Node {
	start := p.nextSig() // REPEAT
	body := p.parseStmtListUntil(func() bool { return p.atKind(lexer.KwUntil) })
	p.expect(lexer.KwUntil)
	cond := p.parseExpr(0)
	end := p.expect(lexer.KwEndRepeat)
	return cst.NewNode(cst.KindRepeatStmt, start, end, body, cond)
}
