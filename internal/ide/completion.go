package ide

import (
	"sort"
	"strings"

	"github.com/stplatform/st-platform/internal/symbols"
)

// CompletionItem is one candidate for an in-progress identifier.
type CompletionItem struct {
	Name string
	Kind symbols.Kind
}

// CompletionAt lists every symbol visible from (file, offset) whose
// name starts with prefix (case-insensitive): every enclosing scope out
// to the root, plus every USING path reachable from them. A name in an
// inner scope hides the same name (case-insensitive) from outer scopes
// and USING paths; the result is sorted by name, case-insensitively,
// not by scope.
func (w *Workspace) CompletionAt(file string, offset int, prefix string) []CompletionItem {
	if w.Table == nil {
		return nil
	}
	scope := w.scopeAt(file, offset)
	folded := strings.ToLower(prefix)

	seen := map[string]bool{}
	var out []CompletionItem
	add := func(id symbols.SymbolId) {
		sym := w.Table.Sym(id)
		if sym.Name == "" || seen[strings.ToLower(sym.Name)] {
			return
		}
		if folded != "" && !strings.HasPrefix(strings.ToLower(sym.Name), folded) {
			return
		}
		seen[strings.ToLower(sym.Name)] = true
		out = append(out, CompletionItem{Name: sym.Name, Kind: sym.Kind})
	}

	for s := scope; s != symbols.NoScope; s = w.Table.Scopes[s].Parent {
		for _, id := range w.Table.Scopes[s].Order {
			add(id)
		}
		for _, path := range w.Table.Scopes[s].Using {
			w.addNamespaceMembers(path, add)
		}
	}

	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (w *Workspace) addNamespaceMembers(path string, add func(symbols.SymbolId)) {
	parts := strings.Split(path, ".")
	scope := w.Table.Root
	for _, part := range parts {
		id, ok := w.Table.LookupLocal(scope, part)
		if !ok || w.Table.Sym(id).Kind != symbols.KindNamespace {
			return
		}
		scope = w.Table.Sym(id).NamespaceScope
	}
	for _, id := range w.Table.Scopes[scope].Order {
		add(id)
	}
}
