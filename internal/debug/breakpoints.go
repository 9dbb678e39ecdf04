package debug

import "github.com/stplatform/st-platform/internal/lexer"

// HitConditionOp names the comparison operator a hit condition checks
// the accumulated hit count against (spec §4.8's hit_condition, three
// variants carried over from the original's session fixtures — see
// SPEC_FULL.md §4 "Hit-conditional operators").
type HitConditionOp int

const (
	HitEQ HitConditionOp = iota
	HitGE
	HitGT
)

// HitCondition is a breakpoint's optional "pause only on the Nth hit"
// predicate.
type HitCondition struct {
	Op    HitConditionOp
	Value int
}

// Satisfied reports whether hits (the count after this hit was
// recorded) satisfies the condition.
func (h HitCondition) Satisfied(hits int) bool {
	switch h.Op {
	case HitEQ:
		return hits == h.Value
	case HitGE:
		return hits >= h.Value
	case HitGT:
		return hits > h.Value
	default:
		return false
	}
}

// LogFragment is one piece of a breakpoint's log-point message: either
// literal text or an `{expr}` to evaluate and substitute (spec §4.8,
// §9 "Log message fragment escaping").
type LogFragment struct {
	Text   string // literal text, when Expr == ""
	Expr   string // expression source, when this fragment is a {expr}
}

// Breakpoint is one installed source breakpoint (spec §3 "Breakpoints
// and Debug State").
type Breakpoint struct {
	ID         int
	File       string
	Start, End int // byte offsets within File
	Condition  string // source text of the optional condition expression, "" if none
	Hit        *HitCondition
	LogMessage []LogFragment // nil if this is an ordinary (pausing) breakpoint
	Hits       int
	Generation int
}

// Matches reports whether loc's byte span is fully contained by the
// breakpoint's source range (spec §4.8: "A breakpoint matches iff the
// source range contains the current location's byte span").
func (b *Breakpoint) Matches(loc lexer.Range) bool {
	return loc.Start.Offset >= b.Start && loc.End.Offset <= b.End
}

// IsLogPoint reports whether b never pauses, only logs.
func (b *Breakpoint) IsLogPoint() bool { return len(b.LogMessage) > 0 }

// BreakpointSet holds every installed breakpoint, grouped by file, with
// a per-file generation counter bumped on each replace (spec §3
// "Generation increments when breakpoints for a file are replaced").
// Callers (Control) serialize access to it under their own lock; the
// set itself holds no lock.
type BreakpointSet struct {
	byFile     map[string][]*Breakpoint
	generation map[string]int
	nextID     int
}

func newBreakpointSet() *BreakpointSet {
	return &BreakpointSet{byFile: map[string][]*Breakpoint{}, generation: map[string]int{}}
}

// SetForFile atomically replaces every breakpoint for file, bumping its
// generation and stamping every new breakpoint with it.
func (s *BreakpointSet) SetForFile(file string, bps []*Breakpoint) {
	s.generation[file]++
	gen := s.generation[file]
	for _, b := range bps {
		if b.ID == 0 {
			s.nextID++
			b.ID = s.nextID
		}
		b.Generation = gen
		b.File = file
	}
	s.byFile[file] = bps
}

// Generation returns file's current breakpoint generation (0 if no
// breakpoints have ever been set for it).
func (s *BreakpointSet) Generation(file string) int { return s.generation[file] }

// AtFile returns every breakpoint installed for file, in installation
// order.
func (s *BreakpointSet) AtFile(file string) []*Breakpoint { return s.byFile[file] }

// AllFiles returns every file's breakpoint list, for stReload's
// carry-breakpoints-across-recompile pass.
func (s *BreakpointSet) AllFiles() map[string][]*Breakpoint { return s.byFile }

// SetBreakpoints installs bps for file, returning the new generation.
func (c *Control) SetBreakpoints(file string, bps []*Breakpoint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakpoints.SetForFile(file, bps)
	return c.breakpoints.Generation(file)
}

// MatchesAt returns every breakpoint at file whose range contains loc.
func (s *BreakpointSet) MatchesAt(file string, loc lexer.Range) []*Breakpoint {
	var out []*Breakpoint
	for _, b := range s.byFile[file] {
		if b.Matches(loc) {
			out = append(out, b)
		}
	}
	return out
}
