package parser

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// parseTopLevel parses one top-level construct: a using directive, a
// namespace, a POU, a standalone TYPE block, or a configuration.
func (p *Parser) parseTopLevel() *cst.Node {
	switch {
	case p.atKind(lexer.KwUsing):
		return p.parseUsingClause()
	case p.atKind(lexer.KwNamespace):
		return p.parseNamespace()
	case p.atKind(lexer.KwProgram):
		return p.parsePOU(cst.KindProgram, lexer.KwProgram, lexer.KwEndProgram)
	case p.atKind(lexer.KwFunctionBlock):
		return p.parsePOU(cst.KindFunctionBlock, lexer.KwFunctionBlock, lexer.KwEndFunctionBlock)
	case p.atKind(lexer.KwFunction):
		return p.parsePOU(cst.KindFunction, lexer.KwFunction, lexer.KwEndFunction)
	case p.atKind(lexer.KwClass):
		return p.parsePOU(cst.KindClass, lexer.KwClass, lexer.KwEndClass)
	case p.atKind(lexer.KwInterface):
		return p.parsePOU(cst.KindInterface, lexer.KwInterface, lexer.KwEndInterface)
	case p.atKind(lexer.KwType):
		return p.parseTypeBlock()
	case p.atKind(lexer.KwConfiguration):
		return p.parseConfiguration()
	default:
		start := p.nextSig()
		p.addDiag("expected a declaration (PROGRAM, FUNCTION, FUNCTION_BLOCK, CLASS, INTERFACE, TYPE, NAMESPACE, CONFIGURATION, or USING)", p.toks[start].Range)
		p.resyncToEnd()
		end := p.pos
		if end > start {
			end--
		}
		return cst.NewNode(cst.KindError, start, end)
	}
}

// parseUsingClause parses `USING A.B.C ;`.
func (p *Parser) parseUsingClause() *cst.Node {
	start := p.nextSig() // USING
	qn := p.parseQualifiedName()
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindUsingClause, start, end, qn)
}

func (p *Parser) parseQualifiedName() *cst.Node {
	start := p.expect(lexer.Ident)
	end := start
	for p.atKind(lexer.Dot) {
		p.expect(lexer.Dot)
		end = p.expect(lexer.Ident)
	}
	return cst.NewNode(cst.KindQualifiedName, start, end)
}

func (p *Parser) parseNamespace() *cst.Node {
	start := p.nextSig() // NAMESPACE
	var children []*cst.Node
	children = append(children, p.parseQualifiedName())
	for !p.atKind(lexer.KwEndNamespace) && !p.atEOF() {
		children = append(children, p.parseTopLevel())
	}
	end := p.expect(lexer.KwEndNamespace)
	return cst.NewNode(cst.KindNamespace, start, end, children...)
}

// parsePOU parses the common shell shared by PROGRAM, FUNCTION,
// FUNCTION_BLOCK, CLASS, and INTERFACE: keyword, name, optional
// EXTENDS/IMPLEMENTS clauses, a return-type annotation for FUNCTION,
// var blocks, a statement body (absent for INTERFACE), and the closing
// END_* keyword.
func (p *Parser) parsePOU(kind cst.Kind, open, close lexer.Kind) *cst.Node {
	start := p.nextSig() // the opening keyword
	var children []*cst.Node

	if p.atKind(lexer.Ident) {
		children = append(children, p.parseIdentExprLeaf())
	}

	if kind == cst.KindFunction && p.atKind(lexer.Colon) {
		p.expect(lexer.Colon)
		children = append(children, p.parseTypeRef())
	}

	if p.atKind(lexer.KwExtends) {
		children = append(children, p.parseExtendsClause())
	}
	if p.atKind(lexer.KwImplements) {
		children = append(children, p.parseImplementsClause())
	}
	if p.atKind(lexer.Semicolon) {
		p.expect(lexer.Semicolon)
	}

	for p.isVarBlockStart() {
		children = append(children, p.parseVarBlock())
	}

	if kind != cst.KindInterface {
		for p.atKind(lexer.KwMethod) || p.atKind(lexer.KwProperty) || p.atKind(lexer.KwAction) {
			switch {
			case p.atKind(lexer.KwMethod):
				children = append(children, p.parsePOU(cst.KindMethod, lexer.KwMethod, lexer.KwEndMethod))
			case p.atKind(lexer.KwProperty):
				children = append(children, p.parseProperty())
			case p.atKind(lexer.KwAction):
				children = append(children, p.parsePOU(cst.KindAction, lexer.KwAction, lexer.KwEndAction))
			}
		}
		if !p.atKind(close) {
			children = append(children, p.parseStmtList(close))
		}
	} else {
		for p.atKind(lexer.KwMethod) {
			children = append(children, p.parseInterfaceMethodSig())
		}
	}

	end := p.expect(close)
	return cst.NewNode(kind, start, end, children...)
}

func (p *Parser) parseExtendsClause() *cst.Node {
	start := p.nextSig()
	end := p.expect(lexer.Ident)
	return cst.NewNode(cst.KindExtendsClause, start, end)
}

func (p *Parser) parseImplementsClause() *cst.Node {
	start := p.nextSig()
	var children []*cst.Node
	children = append(children, p.parseQualifiedName())
	for p.atKind(lexer.Comma) {
		p.expect(lexer.Comma)
		children = append(children, p.parseQualifiedName())
	}
	end := children[len(children)-1].EndTok
	return cst.NewNode(cst.KindImplementsClause, start, end, children...)
}

// parseProperty parses `PROPERTY Name : Type {GET ... END_METHOD | SET ... END_METHOD} END_PROPERTY`;
// each accessor body is closed by END_METHOD.
func (p *Parser) parseProperty() *cst.Node {
	start := p.nextSig() // PROPERTY
	var children []*cst.Node
	children = append(children, p.parseIdentExprLeaf())
	if p.atKind(lexer.Colon) {
		p.expect(lexer.Colon)
		children = append(children, p.parseTypeRef())
	}
	for p.atKind(lexer.KwGet) || p.atKind(lexer.KwSet) {
		if p.atKind(lexer.KwGet) {
			children = append(children, p.parsePOU(cst.KindPropertyGet, lexer.KwGet, lexer.KwEndMethod))
		} else {
			children = append(children, p.parsePOU(cst.KindPropertySet, lexer.KwSet, lexer.KwEndMethod))
		}
	}
	end := p.expect(lexer.KwEndProperty)
	return cst.NewNode(cst.KindProperty, start, end, children...)
}

// parseInterfaceMethodSig parses a bodiless method signature inside an
// INTERFACE block: `METHOD Name ( params ) : Type ;` with no body/END_METHOD.
func (p *Parser) parseInterfaceMethodSig() *cst.Node {
	start := p.nextSig() // METHOD
	var children []*cst.Node
	children = append(children, p.parseIdentExprLeaf())
	if p.atKind(lexer.Colon) {
		p.expect(lexer.Colon)
		children = append(children, p.parseTypeRef())
	}
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindMethod, start, end, children...)
}

// parseIdentExprLeaf consumes a single identifier token as an IdentExpr leaf.
func (p *Parser) parseIdentExprLeaf() *cst.Node {
	idx := p.expect(lexer.Ident)
	return cst.NewLeaf(cst.KindIdentExpr, idx)
}

// --- configuration / resource / task --------------------------------------

func (p *Parser) parseConfiguration() *cst.Node {
	start := p.nextSig() // CONFIGURATION
	var children []*cst.Node
	if p.atKind(lexer.Ident) {
		children = append(children, p.parseIdentExprLeaf())
	}
	for p.isVarBlockStart() {
		children = append(children, p.parseVarBlock())
	}
	for p.atKind(lexer.KwResource) {
		children = append(children, p.parseResource())
	}
	for p.atKind(lexer.KwProgram) {
		children = append(children, p.parseProgramConfig())
	}
	end := p.expect(lexer.KwEndConfiguration)
	return cst.NewNode(cst.KindConfiguration, start, end, children...)
}

func (p *Parser) parseResource() *cst.Node {
	start := p.nextSig() // RESOURCE
	var children []*cst.Node
	if p.atKind(lexer.Ident) {
		children = append(children, p.parseIdentExprLeaf())
	}
	if p.atKind(lexer.KwOn) {
		p.expect(lexer.KwOn)
		children = append(children, p.parseIdentExprLeaf())
	}
	for p.isVarBlockStart() {
		children = append(children, p.parseVarBlock())
	}
	for p.atKind(lexer.KwTask) {
		children = append(children, p.parseTaskConfig())
	}
	for p.atKind(lexer.KwProgram) {
		children = append(children, p.parseProgramConfig())
	}
	end := p.expect(lexer.KwEndResource)
	return cst.NewNode(cst.KindResource, start, end, children...)
}

// parseTaskConfig parses `TASK Name (INTERVAL := T#..., PRIORITY := n, SINGLE := trigger);`.
func (p *Parser) parseTaskConfig() *cst.Node {
	start := p.nextSig() // TASK
	var children []*cst.Node
	children = append(children, p.parseIdentExprLeaf())
	p.expect(lexer.LParen)
	for !p.atKind(lexer.RParen) && !p.atEOF() {
		children = append(children, p.parseTaskInitParam())
		if p.atKind(lexer.Comma) {
			p.expect(lexer.Comma)
		} else {
			break
		}
	}
	p.expect(lexer.RParen)
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindTaskConfig, start, end, children...)
}

func (p *Parser) parseTaskInitParam() *cst.Node {
	start := p.nextSig() // INTERVAL / PRIORITY / SINGLE
	p.expect(lexer.Assign)
	val := p.parseExpr(0)
	return cst.NewNode(cst.KindTaskInit, start, val.EndTok, val)
}

// parseProgramConfig parses `PROGRAM Name WITH Task : TypeName;`.
func (p *Parser) parseProgramConfig() *cst.Node {
	start := p.nextSig() // PROGRAM
	var children []*cst.Node
	children = append(children, p.parseIdentExprLeaf())
	if p.atKind(lexer.KwWith) {
		p.expect(lexer.KwWith)
		children = append(children, p.parseIdentExprLeaf())
	}
	p.expect(lexer.Colon)
	children = append(children, p.parseTypeRef())
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindProgramConfig, start, end, children...)
}
