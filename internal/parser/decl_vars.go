package parser

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// isVarBlockStart reports whether the next significant token is one of
// the VAR_* keywords that open a variable section, each closed by END_VAR.
func (p *Parser) isVarBlockStart() bool {
	switch {
	case p.atKind(lexer.KwVar), p.atKind(lexer.KwVarInput), p.atKind(lexer.KwVarOutput),
		p.atKind(lexer.KwVarInOut), p.atKind(lexer.KwVarGlobal), p.atKind(lexer.KwVarExternal),
		p.atKind(lexer.KwVarTemp), p.atKind(lexer.KwVarAccess), p.atKind(lexer.KwVarConfig):
		return true
	default:
		return false
	}
}

// parseVarBlock parses one VAR_* ... END_VAR section, possibly tagged
// RETAIN/NON_RETAIN/CONSTANT, containing one or more declarations.
func (p *Parser) parseVarBlock() *cst.Node {
	start := p.nextSig() // the VAR_* keyword
	if p.atKind(lexer.KwRetain) || p.atKind(lexer.KwNonRetain) || p.atKind(lexer.KwConstant) {
		p.advanceSig()
	}
	var children []*cst.Node
	for !p.atKind(lexer.KwEndVar) && !p.atEOF() {
		switch p.toks[start].Kind {
		case lexer.KwVarAccess:
			children = append(children, p.parseVarAccessDecl())
		default:
			children = append(children, p.parseVarDecl())
		}
	}
	end := p.expect(lexer.KwEndVar)
	return cst.NewNode(cst.KindVarBlock, start, end, children...)
}

func (p *Parser) advanceSig() int { return p.nextSig() }

func (p *Parser) firstSigIdx() int {
	idx := p.pos
	for idx < len(p.toks) && p.toks[idx].Kind.IsTrivia() {
		idx++
	}
	return idx
}

// parseVarDecl parses `Name {, Name}* [AT %addr] : Type [:= init] ;`.
func (p *Parser) parseVarDecl() *cst.Node {
	start := p.nextSig()
	var children []*cst.Node
	children = append(children, cst.NewLeaf(cst.KindIdentExpr, start))
	for p.atKind(lexer.Comma) {
		p.expect(lexer.Comma)
		nameIdx := p.expect(lexer.Ident)
		children = append(children, cst.NewLeaf(cst.KindIdentExpr, nameIdx))
	}
	if p.atKind(lexer.KwAt) {
		p.expect(lexer.KwAt)
		addrIdx := p.nextSig()
		children = append(children, cst.NewLeaf(cst.KindDirectAddrExpr, addrIdx))
	}
	p.expect(lexer.Colon)
	children = append(children, p.parseTypeRef())
	if p.atKind(lexer.Assign) {
		p.expect(lexer.Assign)
		children = append(children, p.parseExpr(0))
	}
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindVarDecl, start, end, children...)
}

// parseVarAccessDecl parses `Name : path : Type READ_ONLY|READ_WRITE ;`.
func (p *Parser) parseVarAccessDecl() *cst.Node {
	start := p.nextSig()
	var children []*cst.Node
	children = append(children, cst.NewLeaf(cst.KindIdentExpr, start))
	p.expect(lexer.Colon)
	children = append(children, p.parseQualifiedName())
	p.expect(lexer.Colon)
	children = append(children, p.parseTypeRef())
	if p.atKind(lexer.KwReadOnly) || p.atKind(lexer.KwReadWrite) {
		p.advanceSig()
	}
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindVarDecl, start, end, children...)
}

// --- type references -------------------------------------------------------

// parseTypeRef parses a type reference: a simple name, ARRAY[dims] OF T,
// a subrange `Base(lower..upper)`, STRING[n]/WSTRING[n], POINTER TO T,
// REFERENCE TO T, or REF_TO T.
func (p *Parser) parseTypeRef() *cst.Node {
	switch {
	case p.atKind(lexer.KwArray):
		return p.parseArrayTypeRef()
	case p.atKind(lexer.KwPointer):
		return p.parsePrefixTypeRef(cst.KindPointerTypeRef, lexer.KwPointer)
	case p.atKind(lexer.KwReference):
		return p.parsePrefixTypeRef(cst.KindReferenceTypeRef, lexer.KwReference)
	case p.atKind(lexer.KwRefTo):
		return p.parsePrefixTypeRef(cst.KindReferenceTypeRef, lexer.KwRefTo)
	case p.atKind(lexer.KwString), p.atKind(lexer.KwWString):
		return p.parseStringTypeRef()
	default:
		start := p.expect(lexer.Ident)
		base := cst.NewNode(cst.KindTypeRef, start, start)
		if p.atKind(lexer.LParen) {
			return p.parseSubrangeTypeRef(start, base)
		}
		return base
	}
}

func (p *Parser) parsePrefixTypeRef(kind cst.Kind, prefix lexer.Kind) *cst.Node {
	start := p.nextSig() // POINTER / REFERENCE / REF_TO
	if prefix != lexer.KwRefTo {
		p.expect(lexer.KwTo)
	}
	inner := p.parseTypeRef()
	return cst.NewNode(kind, start, inner.EndTok, inner)
}

func (p *Parser) parseStringTypeRef() *cst.Node {
	start := p.nextSig() // STRING / WSTRING
	end := start
	if p.atKind(lexer.LBracket) {
		p.expect(lexer.LBracket)
		lenExpr := p.parseExpr(0)
		end = p.expect(lexer.RBracket)
		return cst.NewNode(cst.KindTypeRef, start, end, lenExpr)
	}
	return cst.NewNode(cst.KindTypeRef, start, end)
}

// parseArrayTypeRef parses `ARRAY [lo..hi {, lo..hi}*] OF ElemType`.
func (p *Parser) parseArrayTypeRef() *cst.Node {
	start := p.nextSig() // ARRAY
	p.expect(lexer.LBracket)
	var dims []*cst.Node
	for {
		lo := p.parseExpr(0)
		p.expect(lexer.DotDot)
		hi := p.parseExpr(0)
		dims = append(dims, cst.NewNode(cst.KindSubrangeTypeRef, lo.StartTok, hi.EndTok, lo, hi))
		if p.atKind(lexer.Comma) {
			p.expect(lexer.Comma)
			continue
		}
		break
	}
	p.expect(lexer.RBracket)
	p.expect(lexer.KwOf)
	elem := p.parseTypeRef()
	return cst.NewNode(cst.KindArrayTypeRef, start, elem.EndTok, append(dims, elem)...)
}

// parseSubrangeTypeRef parses the `Base(lower..upper)` subrange type
// form, e.g. `INT(0..100)`.
func (p *Parser) parseSubrangeTypeRef(start int, base *cst.Node) *cst.Node {
	p.expect(lexer.LParen)
	lo := p.parseExpr(0)
	p.expect(lexer.DotDot)
	hi := p.parseExpr(0)
	end := p.expect(lexer.RParen)
	return cst.NewNode(cst.KindSubrangeTypeRef, start, end, base, lo, hi)
}

// --- standalone TYPE ... END_TYPE blocks ------------------------------------

// parseTypeBlock parses `TYPE Name : <struct|enum|array|alias|subrange>; ... END_TYPE`.
// IEC allows multiple type declarations inside one TYPE block; each
// becomes its own KindTypeDecl child.
func (p *Parser) parseTypeBlock() *cst.Node {
	start := p.nextSig() // TYPE
	var children []*cst.Node
	for !p.atKind(lexer.KwEndType) && !p.atEOF() {
		children = append(children, p.parseTypeDecl())
	}
	end := p.expect(lexer.KwEndType)
	return cst.NewNode(cst.KindTypeDecl, start, end, children...)
}

func (p *Parser) parseTypeDecl() *cst.Node {
	start := p.nextSig() // name
	nameLeaf := cst.NewLeaf(cst.KindIdentExpr, start)
	p.expect(lexer.Colon)
	var def *cst.Node
	switch {
	case p.atKind(lexer.KwStruct):
		def = p.parseStructTypeRef()
	default:
		def = p.parseTypeRef()
	}
	end := p.expect(lexer.Semicolon)
	return cst.NewNode(cst.KindTypeDecl, start, end, nameLeaf, def)
}

func (p *Parser) parseStructTypeRef() *cst.Node {
	start := p.nextSig() // STRUCT
	var fields []*cst.Node
	for !p.atKind(lexer.KwEndStruct) && !p.atEOF() {
		fields = append(fields, p.parseVarDecl())
	}
	end := p.expect(lexer.KwEndStruct)
	return cst.NewNode(cst.KindStructTypeRef, start, end, fields...)
}
