package debug

import (
	"time"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/symbols"
)

// SetCurrentThread attributes subsequent statement observations to
// thread, called by the scheduler before running a task's programs (or
// BackgroundThread for evaluation outside any task).
func (c *Control) SetCurrentThread(thread ThreadId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentThread = thread
}

// CurrentThread reports the thread the hook currently attributes
// observations to.
func (c *Control) CurrentThread() ThreadId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentThread
}

// OnStatement implements runtime.DebugHook: the statement hook protocol
// of spec §4.8. It is always called from the single runtime thread, so
// it may block (via the condvar) without any other goroutine's progress
// depending on this one returning.
func (c *Control) OnStatement(ev *runtime.Evaluator, scope symbols.ScopeId, tree *cst.Tree, stmt *cst.Node) {
	loc := tree.Range(stmt)
	depth := ev.Storage.Depth()

	c.mu.Lock()
	thread := c.currentThread
	c.lastLocation = loc
	c.lastDepth = depth
	c.threadDepths[thread] = depth
	c.frameLocs[thread] = loc

	if c.targetThread != nil && *c.targetThread != thread {
		c.mu.Unlock()
		return
	}

	// Step 2: already paused — consume a pending stop reason (or default
	// to Pause) and block until Running.
	if c.mode == Paused {
		reason, ok := c.popPendingStop(thread)
		if !ok {
			reason = ReasonPause
		}
		c.stopAndWait(ev, scope, thread, depth, reason, 0)
		return
	}

	// Step 3: running on the target thread. Step resolution first (it
	// takes priority so a StepOver landing exactly on a breakpoint still
	// reports Step, matching the original's session fixtures), then
	// breakpoint evaluation.
	if c.stepShouldPause(thread, depth) {
		delete(c.stepStates, thread)
		c.stopAndWait(ev, scope, thread, depth, ReasonStep, 0)
		return
	}
	c.advanceStep(thread, depth)

	if tree.File != "" {
		for _, bp := range c.breakpoints.MatchesAt(tree.File, loc) {
			if bp.Condition != "" && !evalConditionBool(ev, scope, bp.Condition) {
				continue
			}
			bp.Hits++
			if bp.Hit != nil && !bp.Hit.Satisfied(bp.Hits) {
				continue
			}
			if bp.IsLogPoint() {
				msg := formatLogMessage(ev, scope, bp.LogMessage)
				c.emitLog(msg)
				continue
			}
			c.stopAndWait(ev, scope, thread, depth, ReasonBreakpoint, bp.Generation)
			return
		}
	}

	c.mu.Unlock()
}

// popPendingStop removes and returns the oldest pending stop reason for
// thread (or for any thread, if none is thread-specific), if any.
func (c *Control) popPendingStop(thread ThreadId) (StopReason, bool) {
	for i, p := range c.pendingStops {
		if p.thread == thread || p.thread == BackgroundThread {
			c.pendingStops = append(c.pendingStops[:i], c.pendingStops[i+1:]...)
			return p.reason, true
		}
	}
	return 0, false
}

// stepShouldPause reports whether thread's in-flight step (if any)
// resolves at the current depth (spec §4.8 "Step resolution"): the
// first observation after the request is always skipped, then:
//   - Into: pauses on the next observation unconditionally.
//   - Over: pauses at depth <= target.
//   - Out:  pauses at depth <= target-1.
func (c *Control) stepShouldPause(thread ThreadId, depth int) bool {
	st := c.stepStates[thread]
	if st == nil {
		return false
	}
	if !st.Started {
		return false
	}
	switch st.Kind {
	case StepInto:
		return true
	case StepOver:
		return depth <= st.TargetDepth
	case StepOut:
		return depth <= st.TargetDepth-1
	default:
		return false
	}
}

// advanceStep marks thread's step as having seen its first
// (skippable) observation, if it has one in flight.
func (c *Control) advanceStep(thread ThreadId, depth int) {
	if st := c.stepStates[thread]; st != nil && !st.Started {
		st.Started = true
	}
}

// stopAndWait transitions to Paused, re-evaluates every registered
// watch against ev/scope's live context, records and publishes the
// StopEvent, then blocks the calling goroutine on the condvar until the
// mode returns to Running. Must be called with c.mu held; it releases
// the lock itself before returning.
func (c *Control) stopAndWait(ev *runtime.Evaluator, scope symbols.ScopeId, thread ThreadId, depth int, reason StopReason, generation int) {
	c.mode = Paused
	c.reevaluateWatches(ev, scope)
	stop := StopEvent{Reason: reason, Thread: thread, Location: c.frameLocs[thread], Depth: depth, Generation: generation, Time: time.Now()}
	c.recordStop(stop)
	c.notifyStop(stop)
	for c.mode == Paused {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// emitLog pushes msg to the registered log sink, if any. Must be
// called with c.mu held.
func (c *Control) emitLog(msg string) {
	if c.logSink != nil {
		c.logSink(msg)
	}
}
