package cst

import "github.com/stplatform/st-platform/internal/lexer"

// OperatorToken returns the operator token of a KindBinaryExpr or
// KindUnaryExpr node: for a binary node, the first significant token
// strictly between its two children; for a unary node, the node's own
// first token (the prefix operator precedes the single operand child).
func (t *Tree) OperatorToken(n *Node) (lexer.Token, bool) {
	switch n.Kind {
	case KindBinaryExpr:
		if len(n.Children) != 2 {
			return lexer.Token{}, false
		}
		for i := n.Children[0].EndTok + 1; i < n.Children[1].StartTok; i++ {
			if !t.Tokens[i].Kind.IsTrivia() {
				return t.Tokens[i], true
			}
		}
	case KindUnaryExpr:
		for i := n.StartTok; i < n.Children[0].StartTok; i++ {
			if !t.Tokens[i].Kind.IsTrivia() {
				return t.Tokens[i], true
			}
		}
	}
	return lexer.Token{}, false
}
