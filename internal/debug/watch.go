package debug

import (
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/symbols"
)

// Watch is one registered watch expression. Each watch tracks its own
// previous value independently (spec SPEC_FULL.md §4 "Watchpoint
// 'changed since pause' flag survives multiple watches" — a map keyed
// by expression, not one session-wide flag), so one watch changing
// never masks another's unchanged status.
type Watch struct {
	Expr    string
	Last    *runtime.Value // nil before the first evaluation
	Changed bool
}

// AddWatch registers expr for re-evaluation on every stop. Adding text
// that is already registered keeps the existing registration.
func (c *Control) AddWatch(expr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.watches[expr]; !ok {
		c.watches[expr] = &Watch{Expr: expr}
	}
}

// RemoveWatch deregisters expr.
func (c *Control) RemoveWatch(expr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watches, expr)
}

// WatchStatus is one registered watch's current evaluated state (value
// text and changed flag); WatchStatuses returns a snapshot of every one,
// for the DAP adapter's variable paging of the synthetic "Watch" scope.
type WatchStatus struct {
	Expr    string
	Value   string
	Changed bool
	Err     error
}

func (c *Control) WatchStatuses() []WatchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WatchStatus, 0, len(c.watches))
	for _, w := range c.watches {
		st := WatchStatus{Expr: w.Expr, Changed: w.Changed}
		if w.Last != nil {
			st.Value = w.Last.String()
		}
		out = append(out, st)
	}
	return out
}

// reevaluateWatches re-evaluates every registered watch against the
// evaluator/scope of the statement that just caused a stop, setting
// each watch's Changed flag per spec §4.8: "re-evaluate it on each stop
// and set watch_changed when the current value differs from the
// previous (None != Some, and pairwise value inequality)". Must be
// called with c.mu held.
func (c *Control) reevaluateWatches(ev *runtime.Evaluator, scope symbols.ScopeId) {
	for _, w := range c.watches {
		v, err := evalConditionSource(ev, scope, w.Expr)
		if err != nil {
			w.Changed = w.Last != nil
			w.Last = nil
			continue
		}
		switch {
		case w.Last == nil:
			w.Changed = true
		default:
			w.Changed = !w.Last.Equal(v)
		}
		cloned := v.Clone()
		w.Last = &cloned
	}
}
