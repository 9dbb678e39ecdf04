// Package cst defines the lossless concrete syntax tree produced by the
// parser. Every node's text is exactly the token slices it owns,
// trivia included, concatenated in tree order — so the original source
// can always be recovered from the tree alone.
package cst

import (
	"strings"

	"github.com/stplatform/st-platform/internal/lexer"
)

// Kind names a CST node variant. POU kinds, statement kinds, and
// expression kinds all share one tree shape (Kind + token range +
// children); callers that need node-specific fields look them up by
// position or by scanning Children for a particular Kind, using the
// accessor helpers in this package rather than a typed-per-kind struct —
// the tree must stay generic to stay lossless and error-tolerant.
type Kind int

const (
	KindError Kind = iota
	KindSourceFile

	// POUs
	KindProgram
	KindFunction
	KindFunctionBlock
	KindClass
	KindInterface
	KindMethod
	KindProperty
	KindPropertyGet
	KindPropertySet
	KindNamespace
	KindAction
	KindTypeDecl
	KindConfiguration
	KindResource
	KindTaskConfig
	KindTaskInit
	KindProgramConfig

	// Clauses
	KindExtendsClause
	KindImplementsClause
	KindUsingClause
	KindQualifiedName

	// Variable sections
	KindVarBlock
	KindVarDecl
	KindTypeRef
	KindArrayTypeRef
	KindSubrangeTypeRef
	KindStructTypeRef
	KindEnumTypeRef
	KindPointerTypeRef
	KindReferenceTypeRef

	// Statements
	KindStmtList
	KindAssignStmt
	KindOutputConnectStmt // "=>" VAR_OUTPUT connection in a call
	KindIfStmt
	KindCaseStmt
	KindCaseBranch
	KindForStmt
	KindWhileStmt
	KindRepeatStmt
	KindExitStmt
	KindContinueStmt
	KindReturnStmt
	KindCallStmt

	// Expressions
	KindBinaryExpr
	KindUnaryExpr
	KindGroupedExpr
	KindCallExpr
	KindFormalArg
	KindIndexExpr
	KindMemberExpr
	KindDerefExpr
	KindRefExpr
	KindAdrExpr
	KindQAssignExpr
	KindIdentExpr
	KindIntLiteral
	KindRealLiteral
	KindStringLiteral
	KindBoolLiteral
	KindTypedLiteral // TIME#..., INT#..., EnumName#Variant
	KindDirectAddrExpr
)

// Node is a CST node: its kind, the inclusive range of token indices it
// owns within the owning Tree's flat token slice, and its children in
// source order.
type Node struct {
	Kind        Kind
	StartTok    int // inclusive index into Tree.Tokens
	EndTok      int // inclusive index into Tree.Tokens
	Children    []*Node
	Diagnostics []string // parse-time notes attached directly to this node
}

// Tree is a parsed file: the flat, gapless token stream (trivia
// included) and the root node. File is the path/identifier the
// compilation unit was registered under (empty for trees parsed
// outside a named-source compile, e.g. standalone expression parses);
// breakpoints, DAP source references, and cross-file diagnostics key
// off it.
type Tree struct {
	Source string
	File   string
	Tokens []lexer.Token
	Root   *Node
}

// Text returns the exact source text spanned by n, reconstructed purely
// by concatenating owned tokens — never by slicing Source with computed
// offsets — so that the round-trip property is structural, not
// coincidental.
func (t *Tree) Text(n *Node) string {
	var sb strings.Builder
	for i := n.StartTok; i <= n.EndTok && i < len(t.Tokens); i++ {
		sb.WriteString(t.Tokens[i].Text)
	}
	return sb.String()
}

// Range returns the byte range spanned by n.
func (t *Tree) Range(n *Node) lexer.Range {
	if n.StartTok >= len(t.Tokens) || n.EndTok >= len(t.Tokens) {
		return lexer.Range{}
	}
	return lexer.Range{Start: t.Tokens[n.StartTok].Range.Start, End: t.Tokens[n.EndTok].Range.End}
}

// FirstToken returns the first non-trivia token owned directly or
// transitively by n, used to recover the node's "meaningful" start
// position for diagnostics (trivia-inclusive ranges are for
// reconstruction, not for pointing a caret at).
func (t *Tree) FirstToken(n *Node) (lexer.Token, bool) {
	for i := n.StartTok; i <= n.EndTok && i < len(t.Tokens); i++ {
		if !t.Tokens[i].Kind.IsTrivia() {
			return t.Tokens[i], true
		}
	}
	return lexer.Token{}, false
}

// Walk visits n and every descendant in source order.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		Walk(c, visit)
	}
}

// ChildrenOfKind returns n's direct children matching kind, in order.
func ChildrenOfKind(n *Node, kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildOfKind returns n's first direct child matching kind, if any.
func FirstChildOfKind(n *Node, kind Kind) (*Node, bool) {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c, true
		}
	}
	return nil, false
}

// StatementsOf returns the statement children of a KindStmtList node.
func StatementsOf(stmtList *Node) []*Node {
	if stmtList == nil {
		return nil
	}
	return stmtList.Children
}
