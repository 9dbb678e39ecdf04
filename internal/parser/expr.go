package parser

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// bindingPower returns (leftBP, rightBP) for a binary operator token
// kind, per spec §4.1: OR 1/2, XOR 3/4, AND/& 5/6, comparisons 7/8,
// additive 9/10, multiplicative 11/12, ** right-associative 14/13.
// ok is false for tokens that are not binary operators.
func bindingPower(k lexer.Kind) (lbp, rbp int, ok bool) {
	switch k {
	case lexer.KwOr:
		return 1, 2, true
	case lexer.KwXor:
		return 3, 4, true
	case lexer.KwAnd, lexer.Amp:
		return 5, 6, true
	case lexer.Eq, lexer.Ne, lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge:
		return 7, 8, true
	case lexer.Plus, lexer.Minus:
		return 9, 10, true
	case lexer.Star, lexer.Slash, lexer.KwMod, lexer.KwDiv:
		return 11, 12, true
	case lexer.Power:
		return 14, 13, true // right-associative: rbp < lbp
	default:
		return 0, 0, false
	}
}

const unaryBP = 15

// parseExpr parses an expression using Pratt precedence climbing: terms
// bind via nud (prefix position), then a loop consumes binary operators
// whose left binding power exceeds minBP.
func (p *Parser) parseExpr(minBP int) *cst.Node {
	left := p.parseUnary()
	for {
		opKind := p.peekOperatorKind()
		lbp, rbp, ok := bindingPower(opKind)
		if !ok || lbp <= minBP {
			break
		}
		p.nextSig()
		right := p.parseExpr(rbp)
		left = cst.NewNode(cst.KindBinaryExpr, left.StartTok, right.EndTok, left, right)
	}
	return left
}

// peekOperatorKind returns the kind of the next significant token
// without consuming it, for use as a binary-operator lookahead.
func (p *Parser) peekOperatorKind() lexer.Kind {
	idx := p.firstSigIdx()
	return p.toks[idx].Kind
}

func (p *Parser) parseUnary() *cst.Node {
	switch {
	case p.atKind(lexer.KwNot), p.atKind(lexer.Minus), p.atKind(lexer.Plus):
		start := p.nextSig()
		operand := p.parseExpr(unaryBP)
		return cst.NewNode(cst.KindUnaryExpr, start, operand.EndTok, operand)
	case p.atKind(lexer.KwRef):
		start := p.nextSig()
		p.expect(lexer.LParen)
		operand := p.parseExpr(0)
		end := p.expect(lexer.RParen)
		return cst.NewNode(cst.KindRefExpr, start, end, operand)
	case p.atKind(lexer.KwAdr):
		start := p.nextSig()
		p.expect(lexer.LParen)
		operand := p.parseExpr(0)
		end := p.expect(lexer.RParen)
		return cst.NewNode(cst.KindAdrExpr, start, end, operand)
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// parsePostfix applies call/index/member/deref postfix operators to a
// primary expression, left to right.
func (p *Parser) parsePostfix(left *cst.Node) *cst.Node {
	for {
		switch {
		case p.atKind(lexer.LParen):
			left = p.parseCallExpr(left)
		case p.atKind(lexer.LBracket):
			left = p.parseIndexExpr(left)
		case p.atKind(lexer.Dot):
			p.nextSig()
			nameIdx := p.expect(lexer.Ident)
			name := cst.NewLeaf(cst.KindIdentExpr, nameIdx)
			left = cst.NewNode(cst.KindMemberExpr, left.StartTok, nameIdx, left, name)
		case p.atKind(lexer.Caret):
			idx := p.nextSig()
			left = cst.NewNode(cst.KindDerefExpr, left.StartTok, idx, left)
		default:
			return left
		}
	}
}

// parseCallExpr parses `callee ( args )`, where each argument is either
// positional (`expr`), formal by value (`name := expr`), or an output
// connection (`name => expr`).
func (p *Parser) parseCallExpr(callee *cst.Node) *cst.Node {
	p.expect(lexer.LParen)
	var args []*cst.Node
	for !p.atKind(lexer.RParen) && !p.atEOF() {
		args = append(args, p.parseCallArg())
		if p.atKind(lexer.Comma) {
			p.nextSig()
			continue
		}
		break
	}
	end := p.expect(lexer.RParen)
	return cst.NewNode(cst.KindCallExpr, callee.StartTok, end, append([]*cst.Node{callee}, args...)...)
}

// parseCallArg disambiguates `name := expr`, `name => expr`, and a bare
// positional expression by looking ahead past a leading identifier.
func (p *Parser) parseCallArg() *cst.Node {
	if p.atKind(lexer.Ident) {
		if nxt := p.peekSig(1); nxt.Kind == lexer.Assign || nxt.Kind == lexer.Arrow {
			nameIdx := p.nextSig()
			name := cst.NewLeaf(cst.KindIdentExpr, nameIdx)
			isOutput := p.atKind(lexer.Arrow)
			p.nextSig() // := or =>
			val := p.parseExpr(0)
			kind := cst.KindFormalArg
			if isOutput {
				kind = cst.KindOutputConnectStmt
			}
			return cst.NewNode(kind, nameIdx, val.EndTok, name, val)
		}
	}
	return p.parseExpr(0)
}

func (p *Parser) parseIndexExpr(left *cst.Node) *cst.Node {
	p.expect(lexer.LBracket)
	var idxs []*cst.Node
	idxs = append(idxs, p.parseExpr(0))
	for p.atKind(lexer.Comma) {
		p.nextSig()
		idxs = append(idxs, p.parseExpr(0))
	}
	end := p.expect(lexer.RBracket)
	return cst.NewNode(cst.KindIndexExpr, left.StartTok, end, append([]*cst.Node{left}, idxs...)...)
}

func (p *Parser) parsePrimary() *cst.Node {
	switch {
	case p.atKind(lexer.IntLiteral):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindIntLiteral, idx)
	case p.atKind(lexer.RealLiteral):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindRealLiteral, idx)
	case p.atKind(lexer.StringLiteral), p.atKind(lexer.WStringLiteral):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindStringLiteral, idx)
	case p.atKind(lexer.KwTrue), p.atKind(lexer.KwFalse):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindBoolLiteral, idx)
	case p.atKind(lexer.DirectAddress), p.atKind(lexer.DirectAddressStar):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindDirectAddrExpr, idx)
	case p.atKind(lexer.TypedLiteralPrefix):
		return p.parseTypedLiteral()
	case p.atKind(lexer.LParen):
		start := p.nextSig()
		inner := p.parseExpr(0)
		end := p.expect(lexer.RParen)
		return cst.NewNode(cst.KindGroupedExpr, start, end, inner)
	case p.atKind(lexer.Ident), p.atKind(lexer.KwThis), p.atKind(lexer.KwSuper):
		idx := p.nextSig()
		return cst.NewLeaf(cst.KindIdentExpr, idx)
	default:
		idx := p.nextSig()
		p.addDiag("expected an expression", p.toks[idx].Range)
		return cst.NewLeaf(cst.KindError, idx)
	}
}

// parseTypedLiteral parses `Prefix# value`, covering both built-in typed
// literals (`TIME#100ms`, `INT#42`) and qualified enum literals
// (`Color#Red`), distinguished later by the type checker rather than the
// parser — both share the same `IDENT '#' value-or-ident` shape.
func (p *Parser) parseTypedLiteral() *cst.Node {
	start := p.nextSig() // "Prefix#" token
	var value int
	switch {
	case p.atKind(lexer.Ident):
		value = p.nextSig()
	case p.atKind(lexer.IntLiteral), p.atKind(lexer.RealLiteral), p.atKind(lexer.StringLiteral):
		value = p.nextSig()
	default:
		// time/date literals lex as identifier-like runs (e.g. "100ms",
		// "2024-01-01") that the lexer has not specially shaped; accept
		// whatever token follows so the tree stays complete.
		value = p.nextSig()
	}
	return cst.NewNode(cst.KindTypedLiteral, start, value)
}
