package debug

// Pause requests a pause, optionally scoped to one thread (nil pauses
// every thread). Idempotent: a Control already in Paused mode reports
// ActionIgnored and leaves its target/pending-stop state untouched
// (spec §4.8 "idempotent when already in the target mode").
//
// "Pause without an explicit thread falls back to the current thread;
// if no current thread, it pauses globally" (spec §4.8): when thread
// is nil and a thread is currently executing, the pause is scoped to
// it; only when no thread is currently attributed does it apply
// globally.
func (c *Control) Pause(thread *ThreadId) ActionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Paused {
		return ActionIgnored
	}

	target := thread
	if target == nil && c.currentThread != BackgroundThread {
		cur := c.currentThread
		target = &cur
	}
	c.targetThread = target

	reasonThread := BackgroundThread
	if target != nil {
		reasonThread = *target
	}
	c.mode = Paused
	c.pendingStops = append(c.pendingStops, pendingStop{reason: ReasonPause, thread: reasonThread})
	c.cond.Broadcast()
	return ActionApplied
}

// Continue resumes execution, clearing any outstanding step state for
// every thread and releasing the condvar so the blocked runtime thread
// resumes inside OnStatement (spec §5 "Continue releases all waiting
// hook threads atomically").
func (c *Control) Continue() ActionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Running {
		return ActionIgnored
	}
	c.mode = Running
	for t := range c.stepStates {
		delete(c.stepStates, t)
	}
	c.targetThread = nil
	c.cond.Broadcast()
	return ActionApplied
}

// stepAction installs a step request for thread at its current depth
// and resumes execution (stepping only makes sense from Paused).
func (c *Control) stepAction(thread ThreadId, kind StepKind, outBias int) ActionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Running {
		return ActionIgnored
	}
	depth := c.threadDepths[thread]
	c.stepStates[thread] = &StepState{Kind: kind, TargetDepth: depth + outBias}
	c.mode = Running
	c.targetThread = nil
	c.cond.Broadcast()
	return ActionApplied
}

// StepIn pauses on the next statement observed on thread, at any call
// depth (spec §8 "StepIn pauses on the next statement at any depth").
func (c *Control) StepIn(thread ThreadId) ActionResult {
	return c.stepAction(thread, StepInto, 0)
}

// StepOver pauses on thread's next statement at depth <= the depth it
// was paused at (spec §8 "StepOver pauses on the next statement with
// depth <= d").
func (c *Control) StepOver(thread ThreadId) ActionResult {
	return c.stepAction(thread, StepOver, 0)
}

// StepOut pauses on thread's next statement at depth <= one less than
// the depth it was paused at (spec §8 "StepOut pauses ... depth <=
// d-1").
func (c *Control) StepOut(thread ThreadId) ActionResult {
	return c.stepAction(thread, StepOut, -1)
}

// Terminate sets the termination flag, checked by the scheduler at
// cycle boundaries (spec §5 "Terminate sets a flag checked at cycle
// boundaries; in-progress statements are allowed to complete"), and
// releases any paused thread so it can observe the flag.
func (c *Control) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
	c.mode = Running
	c.cond.Broadcast()
}

// Terminated reports whether Terminate has been called.
func (c *Control) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// Mode reports the control's current run mode.
func (c *Control) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// RecordEntryStop queues an Entry stop reason for thread, used once at
// launch before the first statement runs so a DAP client's initial
// "stopped on entry" flow has something to consume.
func (c *Control) RecordEntryStop(thread ThreadId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = Paused
	t := thread
	c.targetThread = &t
	c.pendingStops = append(c.pendingStops, pendingStop{reason: ReasonEntry, thread: thread})
}
