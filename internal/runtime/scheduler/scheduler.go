// Package scheduler drives a linked runtime.Program's CONFIGURATION
// tasks the way a PLC's cyclic executive does: interval and SINGLE
// trigger tasks run in priority order, and every cycle closes with the
// four-step boundary of spec §4.7 (drain queued debug writes, apply
// forces, run due tasks, emit an I/O snapshot). Mirrors the teacher's
// internal/interp package split between value evaluation and the
// surrounding execution harness, generalized from DWScript's single
// script entrypoint to IEC 61131-3's multi-task cyclic model.
package scheduler

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/runtime"
)

// FaultPolicy names how the scheduler reacts to a runtime error raised
// while running a task body (spec §4.7/§7 "the scheduler's fault policy
// decides between safe-halt and continue-with-log").
type FaultPolicy int

const (
	// FaultSafeHalt stops scheduling further cycles after the first
	// faulting task, leaving storage as of the fault.
	FaultSafeHalt FaultPolicy = iota
	// FaultContinueWithLog logs the fault and keeps scheduling every
	// other task for the remainder of the cycle and future cycles.
	FaultContinueWithLog
)

// IOSnapshot is the cycle-boundary view of every direct-address cell
// (spec §4.7 step 4), taken after forces are applied so observers see
// the value actually in effect during the cycle just run.
type IOSnapshot struct {
	Cycle  int
	Time   time.Time
	Values map[string]runtime.Value
	Forced map[string]bool
}

// Observer receives one IOSnapshot per completed cycle.
type Observer func(IOSnapshot)

// Scheduler runs a compiled runtime.Program's CONFIGURATION tasks.
// Exactly one goroutine ever calls RunCycle; everything it touches
// (Storage, the shared Evaluator, Control) is therefore only ever
// mutated from that single runtime thread, matching spec §5's "the
// runtime itself is single-threaded; concurrency is confined to the
// debug control core's condvar".
type Scheduler struct {
	log     *zap.Logger
	prog    *runtime.Program
	control *debug.Control
	policy  FaultPolicy
	ev      *runtime.Evaluator

	mu        sync.Mutex
	observers []Observer

	start      time.Time
	cycleCount int
	cyclesRun  map[string]int
	singleLast map[string]bool
	threadOf   map[string]debug.ThreadId
	halted     bool
	haltErr    error
}

// New builds a Scheduler over prog, wiring control as the evaluator's
// debug hook (nil disables debugging, for `stc run`'s smoke execution
// which never attaches a debugger).
func New(log *zap.Logger, prog *runtime.Program, control *debug.Control, policy FaultPolicy) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ev := runtime.NewEvaluator(prog.Table, prog.Types, prog.Storage, prog.Trees)
	if control != nil {
		ev.Hook = control
	}
	s := &Scheduler{
		log:        log,
		prog:       prog,
		control:    control,
		policy:     policy,
		ev:         ev,
		cyclesRun:  map[string]int{},
		singleLast: map[string]bool{},
		threadOf:   map[string]debug.ThreadId{},
		start:      epoch,
	}
	for i, t := range prog.Tasks {
		s.threadOf[t.Name] = debug.ThreadId(i)
	}
	return s
}

// epoch stands in for time.Now() at construction; the caller stamps the
// real start time via Start, since scripts may not call time.Now()
// themselves but the running CLI/DAP adapter always does.
var epoch time.Time

// Start records now as cycle zero's reference time, for interval tasks'
// due-cycle accounting.
func (s *Scheduler) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = now
}

// AddObserver registers f to receive every future IOSnapshot.
func (s *Scheduler) AddObserver(f Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, f)
}

// Halted reports whether a FaultSafeHalt fault has stopped the
// scheduler, and the error that caused it.
func (s *Scheduler) Halted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted, s.haltErr
}

// dueTask pairs a TaskDef with the priority-FIFO ordering key the
// cycle boundary sorts on.
type dueTask struct {
	index int
	def   *runtime.TaskDef
}

// RunCycle executes one scheduler cycle at reference time now: drains
// debug-queued writes, applies forces, runs every due task in priority
// order (lowest Priority number first, ties broken by declaration
// order), then emits an IOSnapshot (spec §4.7).
func (s *Scheduler) RunCycle(now time.Time) error {
	s.mu.Lock()
	if s.halted {
		s.mu.Unlock()
		return s.haltErr
	}
	s.cycleCount++
	cycle := s.cycleCount
	s.mu.Unlock()

	if s.control != nil {
		for _, w := range s.control.DrainWrites() {
			w.Apply(s.prog.Storage)
		}
	}

	forced := s.applyForces()

	due := s.dueTasks(now)
	sort.SliceStable(due, func(i, j int) bool { return due[i].def.Priority < due[j].def.Priority })

	var faults error
	for _, dt := range due {
		if s.control != nil {
			s.control.SetCurrentThread(s.threadOf[dt.def.Name])
		}
		if err := s.runTask(dt.def); err != nil {
			faults = multierr.Append(faults, err)
			s.log.Warn("task fault", zap.String("task", dt.def.Name), zap.Error(err))
			if s.policy == FaultSafeHalt {
				s.mu.Lock()
				s.halted = true
				s.haltErr = err
				s.mu.Unlock()
				if s.control != nil {
					s.control.EmitEvent("fault", "safe-halt: "+err.Error())
				}
				s.emitSnapshot(cycle, now, forced)
				return err
			}
			if s.control != nil {
				s.control.EmitEvent("fault", "continue: "+err.Error())
			}
		}
	}
	if s.control != nil {
		s.control.SetCurrentThread(debug.BackgroundThread)
	}

	s.emitSnapshot(cycle, now, forced)
	return faults
}

// dueTasks selects every TaskDef due at now: INTERVAL tasks due by
// elapsed-time accounting, SINGLE tasks on a rising edge of their
// trigger global, and tasks with neither (direct CONFIGURATION
// PROGRAM bindings with no owning TASK) every cycle.
func (s *Scheduler) dueTasks(now time.Time) []dueTask {
	var due []dueTask
	for i := range s.prog.Tasks {
		def := &s.prog.Tasks[i]
		switch {
		case def.Single != "":
			if s.singleTriggered(def) {
				due = append(due, dueTask{index: i, def: def})
			}
		case def.Interval.Kind == runtime.KindTime && def.Interval.Dur > 0:
			if s.intervalDue(def, now) {
				due = append(due, dueTask{index: i, def: def})
			}
		default:
			due = append(due, dueTask{index: i, def: def})
		}
	}
	return due
}

// intervalDue reports whether def's next cycle is due, bounding the
// count of cycles ever run for it to floor((now-start)/interval)+1 so a
// long pause between RunCycle calls never causes a burst of catch-up
// executions (spec §4.7 "interval tasks never coalesce missed cycles").
func (s *Scheduler) intervalDue(def *runtime.TaskDef, now time.Time) bool {
	elapsed := now.Sub(s.start)
	if elapsed < 0 {
		return false
	}
	expected := int(elapsed/def.Interval.Dur) + 1
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cyclesRun[def.Name] >= expected {
		return false
	}
	s.cyclesRun[def.Name]++
	return true
}

// singleTriggered reports a rising edge of def.Single's current global
// value, latching the observed level so a trigger held TRUE across
// cycles fires exactly once (spec §4.7 "a SINGLE trigger held high does
// not free-run").
func (s *Scheduler) singleTriggered(def *runtime.TaskDef) bool {
	v, ok := s.prog.Storage.GetGlobal(def.Single)
	if !ok {
		v, ok = s.prog.Storage.GetGlobal(strings.ToUpper(def.Single))
	}
	level := ok && v.Bool

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.singleLast[def.Name]
	s.singleLast[def.Name] = level
	return level && !prev
}

// runTask executes every ProgramInstance bound to def in declaration
// order.
func (s *Scheduler) runTask(def *runtime.TaskDef) error {
	var err error
	for _, inst := range def.Programs {
		if e := s.runProgram(inst); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// runProgram looks up inst's PROGRAM type's declared symbol and body
// tree, pushes a frame bound to its allocated instance, and executes
// its statement list.
func (s *Scheduler) runProgram(inst runtime.ProgramInstance) error {
	id, rerr := s.prog.Table.Resolve(s.prog.Table.Root, inst.TypeName)
	if rerr != nil {
		return rerr
	}
	sym := s.prog.Table.Sym(id)
	tree := s.prog.Trees[id]
	if tree == nil {
		return nil
	}
	body, _ := cst.FirstChildOfKind(sym.Node, cst.KindStmtList)
	if body == nil {
		return nil
	}
	s.prog.Storage.PushFrame(sym.Name, inst.Instance)
	defer s.prog.Storage.PopFrame()
	return s.ev.ExecStmtList(sym.NamespaceScope, tree, body)
}

// applyForces overlays every registered forced global/retain/instance
// field and forced I/O address onto Storage, returning the set of
// direct addresses currently forced so the IOSnapshot can flag them
// (spec §4.8 "Forced values").
func (s *Scheduler) applyForces() map[string]bool {
	if s.control == nil {
		return nil
	}
	s.control.ApplyForces(s.prog.Storage)
	overlay := map[string]bool{}
	for addr := range s.control.ForcedIO() {
		overlay[addr] = true
	}
	return overlay
}

// emitSnapshot builds an IOSnapshot of every %I*/%Q*/%M* global and
// publishes it to every registered observer.
func (s *Scheduler) emitSnapshot(cycle int, now time.Time, forced map[string]bool) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	if len(observers) == 0 {
		return
	}
	values := map[string]runtime.Value{}
	for name, cell := range s.prog.Storage.Globals {
		if strings.HasPrefix(name, "%") {
			values[name] = *cell
		}
	}
	snap := IOSnapshot{Cycle: cycle, Time: now, Values: values, Forced: forced}
	for _, obs := range observers {
		obs(snap)
	}
}
