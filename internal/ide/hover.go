package ide

import (
	"fmt"
	"strings"

	"github.com/stplatform/st-platform/internal/symbols"
)

// Hover is the result of resolving the identifier under a cursor: its
// resolved symbol (Kind/Type/qualifier), or — when resolution is
// ambiguous across several USING paths — the full candidate list (spec
// §9, the testable property "hover on an ambiguous name enumerates
// every candidate and its owning namespace").
type Hover struct {
	Found      bool
	Name       string
	Kind       symbols.Kind
	TypeName   string
	Ambiguous  bool
	Candidates []HoverCandidate
}

// HoverCandidate is one namespace's binding of an ambiguous name.
type HoverCandidate struct {
	Namespace string
	Kind      symbols.Kind
}

// HoverAt resolves the identifier at (file, offset) and describes it.
func (w *Workspace) HoverAt(file string, offset int) Hover {
	ident, ok := w.identAt(file, offset)
	if !ok {
		return Hover{}
	}
	tree, _ := w.Tree(file)
	name := identText(tree, ident)
	scope := w.scopeAt(file, offset)

	id, err := w.Table.Resolve(scope, name)
	if err == nil {
		sym := w.Table.Sym(id)
		return Hover{Found: true, Name: name, Kind: sym.Kind, TypeName: w.Types.String(sym.Type)}
	}

	if rerr, ok := err.(*symbols.ResolutionError); ok && rerr.Ambiguous {
		var candidates []HoverCandidate
		for i, cid := range rerr.Candidates {
			sym := w.Table.Sym(cid)
			ns := ""
			if i < len(rerr.UsingPaths) {
				ns = rerr.UsingPaths[i]
			}
			candidates = append(candidates, HoverCandidate{Namespace: ns, Kind: sym.Kind})
		}
		return Hover{Found: true, Name: name, Ambiguous: true, Candidates: candidates}
	}
	return Hover{Found: false, Name: name}
}

// String renders h the way a DAP/LSP hover panel would show it.
func (h Hover) String() string {
	if !h.Found {
		return fmt.Sprintf("%s: unresolved", h.Name)
	}
	if h.Ambiguous {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: ambiguous across %d candidates\n", h.Name, len(h.Candidates))
		for _, c := range h.Candidates {
			fmt.Fprintf(&sb, "  %s (%v)\n", c.Namespace, c.Kind)
		}
		return sb.String()
	}
	return fmt.Sprintf("%s: %v : %s", h.Name, h.Kind, h.TypeName)
}
