package symbols

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/lexer"
)

// Builder runs the declaration-collection pass (spec §4.3 pass one) over
// one or more parsed files, producing a Table whose symbols carry
// unresolved (types.Invalid) type ids — resolution happens in a later
// pass owned by internal/semantic, once every file's declarations are
// visible to every other file's USING clauses.
type Builder struct {
	Table *Table
	tree  *cst.Tree
	file  string
}

// NewBuilder creates a Builder sharing table across every file fed to
// BuildFile, so cross-file namespace/USING resolution sees every
// declaration regardless of which file it came from.
func NewBuilder(table *Table) *Builder {
	return &Builder{Table: table}
}

// BuildFile collects every declaration in tree into the Table's scope
// tree, rooted under the global root scope.
func (b *Builder) BuildFile(file string, tree *cst.Tree) {
	b.tree = tree
	b.file = file
	for _, child := range tree.Root.Children {
		b.collectTopLevel(b.Table.Root, child)
	}
}

func (b *Builder) text(n *cst.Node) string { return b.tree.Text(n) }

func (b *Builder) rangeOf(n *cst.Node) lexer.Range { return b.tree.Range(n) }

func (b *Builder) collectTopLevel(scope ScopeId, n *cst.Node) {
	switch n.Kind {
	case cst.KindUsingClause:
		if qn, ok := cst.FirstChildOfKind(n, cst.KindQualifiedName); ok {
			b.Table.AddUsing(scope, b.text(qn))
		}
	case cst.KindNamespace:
		b.collectNamespace(scope, n)
	case cst.KindProgram:
		b.collectPOU(scope, n, KindProgram)
	case cst.KindFunction:
		b.collectPOU(scope, n, KindFunction)
	case cst.KindFunctionBlock:
		b.collectPOU(scope, n, KindFunctionBlock)
	case cst.KindClass:
		b.collectPOU(scope, n, KindClass)
	case cst.KindInterface:
		b.collectPOU(scope, n, KindInterface)
	case cst.KindTypeDecl:
		b.collectTypeBlock(scope, n)
	case cst.KindConfiguration:
		b.collectConfiguration(scope, n)
	}
}

func (b *Builder) collectNamespace(scope ScopeId, n *cst.Node) {
	qn, _ := cst.FirstChildOfKind(n, cst.KindQualifiedName)
	parts := splitDots(b.text(qn))

	cur := scope
	for _, part := range parts {
		if id, ok := b.Table.LookupLocal(cur, part); ok && b.Table.Sym(id).Kind == KindNamespace {
			cur = b.Table.Sym(id).NamespaceScope
			continue
		}
		nsScope := b.Table.NewScope(cur, n)
		id := b.Table.Declare(cur, Symbol{
			Name:           part,
			Kind:           KindNamespace,
			Range:          b.rangeOf(n),
			NamespaceScope: nsScope,
			Node:           n,
		})
		cur = b.Table.Sym(id).NamespaceScope
	}

	for _, child := range n.Children {
		if child.Kind == cst.KindQualifiedName {
			continue
		}
		b.collectTopLevel(cur, child)
	}
}

// collectPOU declares the POU itself in scope, then builds its own body
// scope (parameters, locals, nested methods/properties/actions).
func (b *Builder) collectPOU(scope ScopeId, n *cst.Node, kind Kind) {
	nameLeaf, hasName := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	name := ""
	if hasName {
		name = b.text(nameLeaf)
	}

	bodyScope := b.Table.NewScope(scope, n)
	sym := Symbol{
		Name:           name,
		Kind:           kind,
		Range:          b.rangeOf(n),
		NamespaceScope: bodyScope,
		Node:           n,
		Visibility:     Public,
	}
	if ext, ok := cst.FirstChildOfKind(n, cst.KindExtendsClause); ok {
		_ = ext // the type id of the parent is resolved by internal/semantic; recorded on Symbol.Type there
	}
	b.Table.Declare(scope, sym)

	for _, child := range n.Children {
		switch child.Kind {
		case cst.KindVarBlock:
			b.collectVarBlock(bodyScope, child)
		case cst.KindMethod:
			b.collectPOU(bodyScope, child, KindMethod)
		case cst.KindProperty:
			b.collectProperty(bodyScope, child)
		case cst.KindAction:
			b.collectPOU(bodyScope, child, KindMethod)
		}
	}
}

func (b *Builder) collectProperty(scope ScopeId, n *cst.Node) {
	nameLeaf, _ := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	propScope := b.Table.NewScope(scope, n)
	b.Table.Declare(scope, Symbol{
		Name:           b.text(nameLeaf),
		Kind:           KindProperty,
		Range:          b.rangeOf(n),
		NamespaceScope: propScope,
		Node:           n,
		Visibility:     Public,
	})
	for _, child := range n.Children {
		if child.Kind == cst.KindPropertyGet || child.Kind == cst.KindPropertySet {
			for _, gc := range child.Children {
				if gc.Kind == cst.KindVarBlock {
					b.collectVarBlock(propScope, gc)
				}
			}
		}
	}
}

// varQualifierFor maps a VAR_* opening keyword token to its VarQualifier.
func varQualifierFor(k lexer.Kind) VarQualifier {
	switch k {
	case lexer.KwVarInput:
		return VarInput
	case lexer.KwVarOutput:
		return VarOutput
	case lexer.KwVarInOut:
		return VarInOut
	case lexer.KwVarGlobal:
		return VarGlobal
	case lexer.KwVarExternal:
		return VarExternal
	case lexer.KwVarTemp:
		return VarTemp
	case lexer.KwVarAccess:
		return VarAccess
	case lexer.KwVarConfig:
		return VarConfig
	default:
		return VarLocal
	}
}

func (b *Builder) collectVarBlock(scope ScopeId, n *cst.Node) {
	openKind := b.tree.Tokens[n.StartTok].Kind
	qual := varQualifierFor(openKind)

	retain := false
	constant := false
	for i := n.StartTok; i <= n.EndTok && i < len(b.tree.Tokens); i++ {
		switch b.tree.Tokens[i].Kind {
		case lexer.KwRetain:
			retain = true
		case lexer.KwConstant:
			constant = true
		}
	}

	for _, decl := range cst.ChildrenOfKind(n, cst.KindVarDecl) {
		b.collectVarDecl(scope, decl, qual, retain, constant)
	}
}

func (b *Builder) collectVarDecl(scope ScopeId, n *cst.Node, qual VarQualifier, retain, constant bool) {
	names := cst.ChildrenOfKind(n, cst.KindIdentExpr)
	for _, nameLeaf := range names {
		kind := KindVariable
		dir := ParamIn
		switch qual {
		case VarInput:
			kind, dir = KindParameter, ParamIn
		case VarOutput:
			kind, dir = KindParameter, ParamOut
		case VarInOut:
			kind, dir = KindParameter, ParamInOut
		}
		b.Table.Declare(scope, Symbol{
			Name:       b.text(nameLeaf),
			Kind:       kind,
			VarQual:    qual,
			ParamDir:   dir,
			Range:      b.rangeOf(nameLeaf),
			Retain:     retain,
			Constant:   constant,
			Visibility: Public,
			Node:       n,
			AccessMode: b.accessModeOf(n),
		})
	}
}

// accessModeOf scans a VAR_ACCESS declaration's own token range for a
// trailing READ_ONLY keyword; parseVarAccessDecl consumes that keyword
// without giving it its own CST node, so it is only recoverable this way.
func (b *Builder) accessModeOf(n *cst.Node) AccessMode {
	for i := n.StartTok; i <= n.EndTok && i < len(b.tree.Tokens); i++ {
		if b.tree.Tokens[i].Kind == lexer.KwReadOnly {
			return AccessReadOnly
		}
	}
	return AccessReadWrite
}

func (b *Builder) collectTypeBlock(scope ScopeId, n *cst.Node) {
	for _, decl := range n.Children {
		if decl.Kind != cst.KindTypeDecl {
			continue
		}
		nameLeaf, ok := cst.FirstChildOfKind(decl, cst.KindIdentExpr)
		if !ok {
			continue
		}
		b.Table.Declare(scope, Symbol{
			Name:       b.text(nameLeaf),
			Kind:       KindType,
			Range:      b.rangeOf(decl),
			Node:       decl,
			Visibility: Public,
		})
	}
}

func (b *Builder) collectConfiguration(scope ScopeId, n *cst.Node) {
	nameLeaf, hasName := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	name := ""
	if hasName {
		name = b.text(nameLeaf)
	}
	cfgScope := b.Table.NewScope(scope, n)
	b.Table.Declare(scope, Symbol{
		Name:           name,
		Kind:           KindConfiguration,
		Range:          b.rangeOf(n),
		NamespaceScope: cfgScope,
		Node:           n,
		Visibility:     Public,
	})
	for _, child := range n.Children {
		switch child.Kind {
		case cst.KindVarBlock:
			b.collectVarBlock(cfgScope, child)
		case cst.KindResource:
			b.collectResource(cfgScope, child)
		case cst.KindProgramConfig:
			b.collectProgramConfig(cfgScope, child)
		}
	}
}

func (b *Builder) collectResource(scope ScopeId, n *cst.Node) {
	nameLeaf, hasName := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	name := ""
	if hasName {
		name = b.text(nameLeaf)
	}
	resScope := b.Table.NewScope(scope, n)
	b.Table.Declare(scope, Symbol{
		Name:           name,
		Kind:           KindResource,
		Range:          b.rangeOf(n),
		NamespaceScope: resScope,
		Node:           n,
		Visibility:     Public,
	})
	for _, child := range n.Children {
		switch child.Kind {
		case cst.KindVarBlock:
			b.collectVarBlock(resScope, child)
		case cst.KindTaskConfig:
			b.collectTaskConfig(resScope, child)
		case cst.KindProgramConfig:
			b.collectProgramConfig(resScope, child)
		}
	}
}

func (b *Builder) collectTaskConfig(scope ScopeId, n *cst.Node) {
	nameLeaf, _ := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	b.Table.Declare(scope, Symbol{
		Name:       b.text(nameLeaf),
		Kind:       KindTask,
		Range:      b.rangeOf(n),
		Node:       n,
		Visibility: Public,
	})
}

// collectProgramConfig declares the PROGRAM ... WITH Task : TypeName
// instance. Binding the instance's type name to the actual PROGRAM POU
// symbol is a type-resolution concern, deferred to internal/semantic.
func (b *Builder) collectProgramConfig(scope ScopeId, n *cst.Node) {
	nameLeaf, _ := cst.FirstChildOfKind(n, cst.KindIdentExpr)
	b.Table.Declare(scope, Symbol{
		Name:       b.text(nameLeaf),
		Kind:       KindProgramInstance,
		Range:      b.rangeOf(n),
		Node:       n,
		Visibility: Public,
	})
}
