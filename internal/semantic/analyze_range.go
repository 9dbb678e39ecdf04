package semantic

import (
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// checkIndexBounds implements the array-index range checks of spec
// §4.4: a constant literal index outside the array's folded dimension
// bounds, or an index subrange type not fully contained in it.
func (c *Checker) checkIndexBounds(scope symbols.ScopeId, n *cst.Node) {
	base := n.Children[0]
	indices := n.Children[1:]
	baseType := c.reg.Resolve(c.typer.TypeOf(scope, base))
	if baseType == types.Invalid {
		return
	}
	t := c.reg.Get(baseType)
	if t.Kind != types.KindArray {
		return
	}
	for i, idx := range indices {
		if i >= len(t.ArrayDims) {
			break
		}
		dim := t.ArrayDims[i]
		if v, ok := evalConstIntExpr(c.tree, idx); ok {
			if !dim.Contains(v) {
				c.add(Diagnostic{Code: CodeArrayIndexOutOfBounds, Severity: SeverityError,
					Message: "array index literal is out of bounds", Range: c.tree.Range(idx)})
			}
			continue
		}
		idxType := c.reg.Resolve(c.typer.TypeOf(scope, idx))
		if idxType == types.Invalid {
			continue
		}
		it := c.reg.Get(idxType)
		if it.Kind == types.KindSubrange && (it.SubrangeLower < dim.Lower || it.SubrangeUpper > dim.Upper) {
			c.add(Diagnostic{Code: CodeArrayIndexSubrangeNotContained, Severity: SeverityError,
				Message: "index subrange is not fully contained in the array's bounds", Range: c.tree.Range(idx)})
		}
	}
}
