package dap

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/config"
	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/runtime/scheduler"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

// session is the per-connection debug state: the compiled program, the
// shared debug.Control core, the cyclic scheduler driving it, and the
// source text a launch/stReload compiled from. Exactly one session
// backs one stdio connection (spec §4.9 "one DAP session per adapter
// process"); session.go's split between compile/launch/reload mirrors
// the teacher's own cmd/dwscript driver pattern of building a runtime
// once and handing it to whatever surface runs it next.
type session struct {
	mu  sync.Mutex
	log *zap.Logger
	cfg config.Project

	sources map[string]string // path -> text, as last launched/reloaded
	program string            // the program path stReload without args reuses

	table *symbols.Table
	types *types.Registry
	trees map[string]*cst.Tree
	prog  *runtime.Program

	control *debug.Control
	sched   *scheduler.Scheduler
	ticker  *time.Ticker
	stopRun chan struct{}

	varRefs *varRefTable

	launched   bool
	configDone bool
	terminated bool

	// sent by the scheduler/control goroutines, drained by the adapter's
	// forwarding loop and turned into DAP events.
	outbox chan string
}

func newSession(log *zap.Logger, cfg config.Project) *session {
	if log == nil {
		log = zap.NewNop()
	}
	return &session{
		log:     log,
		cfg:     cfg,
		varRefs: newVarRefTable(),
		outbox:  make(chan string, 64),
	}
}

// pushEvent encodes and queues an event envelope for the adapter's
// writer goroutine to drain; seq is stamped later by the adapter since
// session has no sequence counter of its own (spec §4.9's envelope seq
// is adapter-global across responses and events alike).
func (s *session) pushEvent(raw string) {
	select {
	case s.outbox <- raw:
	default:
		s.log.Warn("dap event dropped, outbox full")
	}
}

// compile builds a compileResult over sources and installs it as the
// session's active compilation plus a fresh debug.Control/Scheduler,
// replacing whatever preceded it. Breakpoints are not carried here;
// callers that want them to survive (stReload) reinstall them
// afterward from the old control's BreakpointSet (spec SPEC_FULL.md §4
// "stReload preserves existing breakpoints by file+range, not by
// identity").
func (s *session) compile(sources map[string]string, program string) *compileResult {
	res := compileSources(sources)
	if res.HasErrors() {
		return res
	}

	control := debug.NewControl(s.log)
	control.SetLogSink(func(msg string) {
		s.pushEvent(newEvent(0, "output", outputEventBody("console", msg)))
	})
	control.SetEventSink(func(name, detail string) {
		s.pushEvent(newEvent(0, name, newOutMessage().set("detail", detail).String()))
	})
	control.SetStopSink(func(ev debug.StopEvent) {
		s.pushEvent(newEvent(0, "stopped", stoppedEventBody(ev)))
	})

	sched := scheduler.New(s.log, res.Prog, control, faultPolicy(s.cfg.Runtime.FaultPolicy))
	sched.AddObserver(func(snap scheduler.IOSnapshot) {
		s.pushEvent(newEvent(0, "stIoState", ioStateEventBody(snap)))
	})

	s.sources = sources
	s.program = program
	s.table, s.types, s.trees, s.prog = res.Table, res.Types, res.Trees, res.Prog
	s.control = control
	s.sched = sched
	s.varRefs.reset()
	return res
}

func faultPolicy(p config.FaultPolicy) scheduler.FaultPolicy {
	if p == config.FaultContinueWithLog {
		return scheduler.FaultContinueWithLog
	}
	return scheduler.FaultSafeHalt
}

// launch compiles sources and, when stopOnEntry is set, records an Entry
// stop on the background thread so a client's initial stopped-on-entry
// flow has something to consume (spec §4.9 "launch ... the adapter
// immediately records an Entry stop"). It does not start the cyclic run
// loop; start does that.
func (s *session) launch(sources map[string]string, program string, stopOnEntry bool) *compileResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.compile(sources, program)
	if res.HasErrors() {
		return res
	}
	s.launched = true
	if stopOnEntry {
		s.control.RecordEntryStop(debug.BackgroundThread)
	}
	return res
}

// start begins the cyclic run loop, called once configurationDone
// arrives (spec §4.9 "the run loop does not start until
// configurationDone", matching a real DAP client's launch sequencing:
// initialize -> launch -> setBreakpoints* -> configurationDone).
func (s *session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configDone || !s.launched {
		return
	}
	s.configDone = true
	s.startRunLoop()
}

// reload recompiles the program from its current (or newly supplied)
// sources, carrying the retained-variable snapshot and reinstalling
// every breakpoint whose file+byte-range still exists in the new trees
// (spec SPEC_FULL.md §4's stReload feature).
func (s *session) reload(sources map[string]string) (*compileResult, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldControl *debug.Control
	var retained runtime.RetainSnapshot
	hadRetain := false
	if s.prog != nil {
		retained = s.prog.Storage.RetainSnapshotTake()
		hadRetain = true
	}
	oldControl = s.control

	res := s.compile(sources, s.program)
	if res.HasErrors() {
		// compile installs nothing on failure and the run loop has not
		// been stopped, so the session keeps running the last good program.
		return res, 0
	}
	s.stopRunLoop()
	if hadRetain {
		s.prog.Storage.RetainSnapshotApply(retained)
	}

	carried := 0
	if oldControl != nil {
		for file, bps := range oldControl.Breakpoints().AllFiles() {
			newTree, ok := s.trees[file]
			if !ok {
				continue
			}
			var kept []*debug.Breakpoint
			for _, bp := range bps {
				if breakpointStillValid(newTree, bp) {
					kept = append(kept, &debug.Breakpoint{
						File: file, Start: bp.Start, End: bp.End,
						Condition: bp.Condition, Hit: bp.Hit, LogMessage: bp.LogMessage,
					})
				}
			}
			if len(kept) > 0 {
				s.control.SetBreakpoints(file, kept)
				carried += len(kept)
			}
		}
	}

	s.launched = true
	s.startRunLoop()
	return res, carried
}

// breakpointStillValid reports whether bp's byte range still falls
// inside tree's source text (a crude but cheap survival check — an
// edit that shifts everything after it invalidates stale byte offsets,
// which is expected: the client is told how many breakpoints survived
// and can re-set the rest).
func breakpointStillValid(tree *cst.Tree, bp *debug.Breakpoint) bool {
	return bp.Start >= 0 && bp.End <= len(tree.Source) && bp.Start < bp.End
}

// startRunLoop starts the scheduler's cyclic run loop on a background
// goroutine, ticking once per configured cycle period (falling back to
// a fast simulated cycle when no watchdog/cycle period is configured,
// matching `stc run`'s free-running smoke mode).
func (s *session) startRunLoop() {
	period := time.Duration(s.cfg.Runtime.WatchdogMillis) * time.Millisecond
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	s.sched.Start(time.Now())
	s.ticker = time.NewTicker(period)
	s.stopRun = make(chan struct{})
	ticker, stop, sched, control := s.ticker, s.stopRun, s.sched, s.control
	go func() {
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				if control.Terminated() {
					return
				}
				if err := sched.RunCycle(now); err != nil {
					s.log.Debug("cycle fault", zap.Error(err))
				}
			}
		}
	}()
}

func (s *session) stopRunLoop() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.stopRun != nil {
		close(s.stopRun)
		s.stopRun = nil
	}
}

// terminate halts the run loop and the underlying control, idempotent
// across repeated disconnect/terminate requests.
func (s *session) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	s.stopRunLoop()
	if s.control != nil {
		s.control.Terminate()
	}
}

// evaluator returns a fresh Evaluator bound to the session's live
// program, wired to the same debug.Control hook the scheduler uses so
// evaluate/watch/condition expressions observe forced values the same
// way a running cycle would.
func (s *session) evaluator() *runtime.Evaluator {
	ev := runtime.NewEvaluator(s.table, s.types, s.prog.Storage, s.prog.Trees)
	ev.Hook = s.control
	return ev
}

// checkWritable rejects a write to name when it names a VAR_ACCESS path
// declared READ_ONLY (SPEC_FULL.md §4: setExpression and stVarWrite must
// refuse such writes with a DAP error rather than silently dropping
// them, matching trust-hir's access-mode enforcement). VAR_ACCESS paths
// live in a CONFIGURATION/RESOURCE's own scope rather than on the
// ancestor chain of whatever frame is executing, so this scans the
// whole symbol arena by name instead of calling Table.Resolve. Names
// that don't name any VAR_ACCESS path are always writable as far as
// this check goes.
func (s *session) checkWritable(name string) error {
	if s.table == nil {
		return nil
	}
	for i := range s.table.Symbols {
		sym := &s.table.Symbols[i]
		if sym.Kind != symbols.KindVariable || sym.VarQual != symbols.VarAccess {
			continue
		}
		if !strings.EqualFold(sym.Name, name) {
			continue
		}
		if sym.AccessMode == symbols.AccessReadOnly {
			return fmt.Errorf("%s is READ_ONLY (VAR_ACCESS)", name)
		}
	}
	return nil
}

// threadName renders a ThreadId as the DAP thread label (spec §4.9
// "threads: one thread per task plus a Background thread").
func (s *session) threadName(id debug.ThreadId) string {
	if id == debug.BackgroundThread {
		return "Background"
	}
	if s.prog != nil && int(id) < len(s.prog.Tasks) {
		return s.prog.Tasks[id].Name
	}
	return fmt.Sprintf("Thread %d", id)
}

// allThreads returns every thread id currently known (every declared
// task plus Background), sorted for stable display.
func (s *session) allThreads() []debug.ThreadId {
	ids := map[debug.ThreadId]bool{debug.BackgroundThread: true}
	if s.prog != nil {
		for i := range s.prog.Tasks {
			ids[debug.ThreadId(i)] = true
		}
	}
	for _, t := range s.control.Threads() {
		ids[t] = true
	}
	out := make([]debug.ThreadId, 0, len(ids))
	for t := range ids {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ioKind classifies a direct address's storage namespace by its first
// letter after '%' (spec §3 "%I inputs, %Q outputs, %M memory").
type ioKind int

const (
	ioInput ioKind = iota
	ioOutput
	ioMemory
	ioNotDirect
)

// refForValue allocates a variables_reference handle for v if it is a
// composite (struct/array/reference) value worth paging into, or 0 for
// a scalar (spec §4.9 "variablesReference is 0 for any value with no
// children").
func (s *session) refForValue(v runtime.Value) int {
	switch v.Kind {
	case runtime.KindStruct, runtime.KindArray, runtime.KindReference:
		kind := refStruct
		if v.Kind == runtime.KindArray {
			kind = refArray
		} else if v.Kind == runtime.KindReference {
			kind = refReference
		}
		cp := v
		return s.varRefs.alloc(varRef{kind: kind, value: &cp})
	default:
		return 0
	}
}

func classifyIO(addr string) ioKind {
	addr = strings.ToUpper(addr)
	if !strings.HasPrefix(addr, "%") || len(addr) < 2 {
		return ioNotDirect
	}
	switch addr[1] {
	case 'I':
		return ioInput
	case 'Q':
		return ioOutput
	case 'M':
		return ioMemory
	default:
		return ioNotDirect
	}
}
