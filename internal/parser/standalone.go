package parser

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// ParseStandaloneExpr parses src as one expression, outside of any POU
// body. It backs every consumer that compiles a bare expression string
// against the same Pratt parser the statement grammar uses: breakpoint
// conditions and hit-condition predicates, log-point `{expr}`
// fragments, watch expressions, and the DAP `evaluate` request.
func ParseStandaloneExpr(src string) (*cst.Tree, []Diagnostic) {
	toks := lexer.New(src).LexAll()
	p := New(src, toks)
	for p.curKind().IsTrivia() {
		p.advance()
	}
	expr := p.parseExpr(0)
	return &cst.Tree{Source: src, Tokens: toks, Root: expr}, p.diags
}
