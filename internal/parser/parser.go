// Package parser builds a lossless cst.Tree from a token stream via
// recursive descent for declarations/statements and a Pratt parser for
// expressions, following the error-recovery policy of the spec: attach
// a diagnostic to the node that could not continue, then either retry
// after skipping trivia or resynchronize to the enclosing END_* keyword.
package parser

import (
	"fmt"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// Diagnostic is a parse-time error attached to a CST range.
type Diagnostic struct {
	Message string
	Range   lexer.Range
}

// Parser holds the flat token stream (trivia included) and a cursor
// over it. sig (significant-token) indices let the grammar ignore
// trivia without discarding it from the tree.
type Parser struct {
	src    string
	toks   []lexer.Token
	pos    int // index into toks, may point at trivia
	diags  []Diagnostic
}

// New creates a Parser over a pre-lexed, gapless token stream.
func New(src string, toks []lexer.Token) *Parser {
	return &Parser{src: src, toks: toks}
}

// Parse parses an entire compilation unit (one or more top-level POUs
// and declarations) into a lossless tree.
func Parse(src string) (*cst.Tree, []Diagnostic) {
	return ParseFile("", src)
}

// ParseFile is Parse with the resulting tree stamped with file, the
// identifier breakpoints/diagnostics/DAP source references key off.
func ParseFile(file, src string) (*cst.Tree, []Diagnostic) {
	toks := lexer.New(src).LexAll()
	p := New(src, toks)
	root := p.parseSourceFile()
	return &cst.Tree{Source: src, File: file, Tokens: toks, Root: root}, p.diags
}

func (p *Parser) addDiag(msg string, rng lexer.Range) {
	p.diags = append(p.diags, Diagnostic{Message: msg, Range: rng})
}

// --- token cursor helpers -------------------------------------------------

// cur returns the current token, clamped to the trailing EOF.
func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) curKind() lexer.Kind { return p.cur().Kind }

// peekSig looks ahead n significant (non-trivia) tokens from the
// current significant token, without consuming anything.
func (p *Parser) peekSig(n int) lexer.Token {
	idx := p.pos
	count := -1
	for idx < len(p.toks) {
		if !p.toks[idx].Kind.IsTrivia() {
			count++
			if count == n {
				return p.toks[idx]
			}
		}
		idx++
	}
	return p.toks[len(p.toks)-1]
}

// atSig reports whether the cursor currently sits on a significant
// (non-trivia) token.
func (p *Parser) atSig() bool { return !p.curKind().IsTrivia() }

// advance consumes the current token (trivia or significant) and
// returns its index.
func (p *Parser) advance() int {
	idx := p.pos
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return idx
}

// next consumes trivia until the next significant token, then consumes
// and returns that token's index. Because node ranges are computed as
// [firstConsumedIdx, lastConsumedIdx], leading trivia before a
// construct is naturally absorbed into whichever node's Start precedes
// it, and is never dropped.
func (p *Parser) nextSig() int {
	for p.curKind().IsTrivia() {
		p.advance()
	}
	return p.advance()
}

// expect consumes the next significant token if it matches kind,
// recording a diagnostic otherwise (the token is still consumed so the
// cursor always makes progress).
func (p *Parser) expect(kind lexer.Kind) int {
	for p.curKind().IsTrivia() {
		p.advance()
	}
	if p.curKind() != kind {
		p.addDiag(fmt.Sprintf("expected %v, found %v %q", kind, p.curKind(), p.cur().Text), p.cur().Range)
		if p.curKind() == lexer.EOF {
			return p.pos
		}
		return p.advance()
	}
	return p.advance()
}

// atKind reports whether the next significant token (without consuming
// trivia) is kind.
func (p *Parser) atKind(kind lexer.Kind) bool {
	idx := p.pos
	for idx < len(p.toks) && p.toks[idx].Kind.IsTrivia() {
		idx++
	}
	return idx < len(p.toks) && p.toks[idx].Kind == kind
}

func (p *Parser) atEOF() bool { return p.atKind(lexer.EOF) }

// isEndKeyword reports whether kind is one of the END_* family, used by
// the resync policy to recognize a safe stopping point.
func isEndKeyword(k lexer.Kind) bool {
	switch k {
	case lexer.KwEndProgram, lexer.KwEndFunction, lexer.KwEndFunctionBlock, lexer.KwEndClass,
		lexer.KwEndInterface, lexer.KwEndMethod, lexer.KwEndProperty, lexer.KwEndNamespace,
		lexer.KwEndAction, lexer.KwEndVar, lexer.KwEndType, lexer.KwEndStruct,
		lexer.KwEndConfiguration, lexer.KwEndResource, lexer.KwEndIf, lexer.KwEndCase,
		lexer.KwEndFor, lexer.KwEndWhile, lexer.KwEndRepeat:
		return true
	default:
		return false
	}
}

// resyncToEnd skips tokens until an END_* keyword (left unconsumed), a
// ';' (consumed), or EOF, recording each skip implicitly by cursor
// advancement (no tokens are dropped
// from the stream — they are simply folded into the errored node's
// range by the caller).
func (p *Parser) resyncToEnd() {
	for !p.atEOF() {
		if isEndKeyword(p.curKind()) && p.atSig() {
			return
		}
		if p.curKind().IsTrivia() {
			p.advance()
			continue
		}
		if p.curKind() == lexer.Semicolon {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *Parser) parseSourceFile() *cst.Node {
	start := 0
	var children []*cst.Node
	for !p.atEOF() {
		before := p.pos
		children = append(children, p.parseTopLevel())
		if p.pos == before {
			// guarantee forward progress
			p.advance()
		}
	}
	end := p.pos
	if end > 0 {
		end--
	}
	return cst.NewNode(cst.KindSourceFile, start, end, children...)
}
