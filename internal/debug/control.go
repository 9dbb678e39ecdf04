// Package debug is the shared debug-control coordination core: a single
// mutex+condvar state machine that the runtime's statement hook
// consults on every observation, and that DAP adapter threads drive
// through Pause/Continue/Step* actions. Mirrors the teacher's
// concurrency-light style (the teacher itself has no debugger; the
// mutex+condvar shape here is the standard library's own pattern for
// this exact problem, which no pack dependency replaces — see
// DESIGN.md) while keeping zap for structured event logging, the way
// the teacher's sibling packages log through a shared logger field.
package debug

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/lexer"
)

// Mode is the debug control's run state.
type Mode int

const (
	Running Mode = iota
	Paused
)

// ThreadId identifies one of the scheduler's task threads, or
// BackgroundThread for statement observations outside any task (spec
// §4.9 "threads: one thread per task plus a Background thread").
type ThreadId int

const BackgroundThread ThreadId = -1

// StepKind names a step action's target granularity.
type StepKind int

const (
	StepInto StepKind = iota
	StepOver
	StepOut
)

// StepState is one thread's in-flight step request.
type StepState struct {
	Kind        StepKind
	TargetDepth int
	Started     bool // true once the first post-request observation has been skipped
}

// StopReason names why a statement observation paused.
type StopReason int

const (
	ReasonPause StopReason = iota
	ReasonEntry
	ReasonStep
	ReasonBreakpoint
)

func (r StopReason) String() string {
	switch r {
	case ReasonPause:
		return "Pause"
	case ReasonEntry:
		return "Entry"
	case ReasonStep:
		return "Step"
	case ReasonBreakpoint:
		return "Breakpoint"
	default:
		return "Unknown"
	}
}

// StopEvent records one pause, for the bounded stop log and the
// DAP `stopped` event body.
type StopEvent struct {
	Reason     StopReason
	Thread     ThreadId
	Location   lexer.Range
	Depth      int
	Generation int // the breakpoint file's generation at the time of the stop, for Breakpoint stops
	Time       time.Time
}

// ActionResult reports whether a control action changed mode or was a
// no-op because the control was already in the requested state (spec
// §4.8 "idempotent when already in the target mode, reported as
// Ignored").
type ActionResult int

const (
	ActionApplied ActionResult = iota
	ActionIgnored
)

// maxStopLog bounds the stop log so a long-running session's memory
// does not grow unboundedly; the DAP adapter only ever looks at the
// most recent entries.
const maxStopLog = 256

// Control is the single shared coordination state, guarded by mu/cond.
// Exactly one Control exists per runtime session.
type Control struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *zap.Logger

	mode Mode

	lastLocation lexer.Range
	lastDepth    int
	threadDepths map[ThreadId]int
	frameLocs    map[ThreadId]lexer.Range

	currentThread ThreadId
	targetThread  *ThreadId

	breakpoints *BreakpointSet

	pendingStops []pendingStop
	lastStop     *StopEvent
	stopLog      []StopEvent

	stepStates map[ThreadId]*StepState

	writes  []QueuedWrite
	forced  map[string]ForcedValue
	watches map[string]*Watch

	terminated bool

	logSink   func(message string)
	ioSink    func(event string)
	stopSink  func(StopEvent)
	eventSink func(name, detail string)
}

type pendingStop struct {
	reason StopReason
	thread ThreadId
}

// NewControl creates a Control in Running mode with no breakpoints,
// steps, or forces.
func NewControl(log *zap.Logger) *Control {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Control{
		log:          log,
		mode:         Running,
		threadDepths: map[ThreadId]int{},
		frameLocs:    map[ThreadId]lexer.Range{},
		stepStates:   map[ThreadId]*StepState{},
		forced:       map[string]ForcedValue{},
		watches:      map[string]*Watch{},
		breakpoints:  newBreakpointSet(),
		currentThread: BackgroundThread,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SetLogSink/SetIoSink register the channels custom DAP events
// (stIoState/log points) are pushed through; nil disables delivery.
func (c *Control) SetLogSink(f func(message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logSink = f
}

func (c *Control) SetIoSink(f func(event string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ioSink = f
}

// SetStopSink registers the callback the DAP adapter uses to turn a
// StopEvent into a `stopped` DAP event. Called with c.mu held by the
// notifier, so the sink must not call back into Control.
func (c *Control) SetStopSink(f func(StopEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSink = f
}

// SetEventSink registers the callback used for runtime fault/lifecycle
// notifications (scheduler fault-policy decisions, stReload
// completion) that the DAP adapter surfaces as custom events.
func (c *Control) SetEventSink(f func(name, detail string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventSink = f
}

// EmitEvent publishes name/detail through the registered event sink, if
// any. Exported for the scheduler to report fault-policy decisions.
func (c *Control) EmitEvent(name, detail string) {
	c.mu.Lock()
	sink := c.eventSink
	c.mu.Unlock()
	if sink != nil {
		sink(name, detail)
	}
}

// notifyStop publishes stop through the registered stop sink, if any.
// Must be called with c.mu held (matching logSink/emitLog's contract).
func (c *Control) notifyStop(stop StopEvent) {
	if c.stopSink != nil {
		c.stopSink(stop)
	}
}

// Breakpoints exposes the breakpoint set for setBreakpoints/
// breakpointLocations handling.
func (c *Control) Breakpoints() *BreakpointSet { return c.breakpoints }

// Snapshot is an immutable view of the control's externally visible
// state, cloned under the lock so DAP handlers never hold it across a
// condvar wait (spec §5 "Debug snapshots are clones... so long
// computations can read them without holding the runtime lock").
type Snapshot struct {
	Mode          Mode
	CurrentThread ThreadId
	LastStop      *StopEvent
	StopLog       []StopEvent
	ThreadDepths  map[ThreadId]int
	FrameLocs     map[ThreadId]lexer.Range
}

func (c *Control) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	depths := make(map[ThreadId]int, len(c.threadDepths))
	for k, v := range c.threadDepths {
		depths[k] = v
	}
	locs := make(map[ThreadId]lexer.Range, len(c.frameLocs))
	for k, v := range c.frameLocs {
		locs[k] = v
	}
	return Snapshot{
		Mode:          c.mode,
		CurrentThread: c.currentThread,
		LastStop:      c.lastStop,
		StopLog:       append([]StopEvent(nil), c.stopLog...),
		ThreadDepths:  depths,
		FrameLocs:     locs,
	}
}

// ThreadLocation returns the last statement location observed on
// thread, for DAP stackTrace frames.
func (c *Control) ThreadLocation(thread ThreadId) (lexer.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.frameLocs[thread]
	return loc, ok
}

// Threads returns every thread id the hook has ever attributed an
// observation to, for the DAP `threads` response.
func (c *Control) Threads() []ThreadId {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ThreadId, 0, len(c.threadDepths))
	for t := range c.threadDepths {
		out = append(out, t)
	}
	return out
}

func (c *Control) recordStop(ev StopEvent) {
	c.lastStop = &ev
	c.stopLog = append(c.stopLog, ev)
	if len(c.stopLog) > maxStopLog {
		c.stopLog = c.stopLog[len(c.stopLog)-maxStopLog:]
	}
}
