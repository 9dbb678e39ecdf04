package debug

import "github.com/stplatform/st-platform/internal/runtime"

// WriteTarget names which storage namespace a QueuedWrite lands in
// (spec §4.6/§4.7 "queued writes... applied at the next cycle").
type WriteTarget int

const (
	WriteGlobal WriteTarget = iota
	WriteRetain
	WriteInstanceField
	WriteLocal
	WriteLValue // a named write that Apply stores as a global; it is not resolved against the current frame
)

// QueuedWrite is one pending write enqueued by the DAP adapter
// (setExpression/stVarWrite/stIoWrite on a non-force target), applied
// by the scheduler at the next cycle boundary (spec §4.7 step 1).
type QueuedWrite struct {
	Target   WriteTarget
	Name     string // global/retain/local name, or instance field name
	Instance runtime.InstanceId
	Value    runtime.Value
}

// EnqueueWrite appends w to the pending write queue.
func (c *Control) EnqueueWrite(w QueuedWrite) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, w)
}

// DrainWrites removes and returns every queued write, for the scheduler
// to apply at a cycle boundary. The queue is empty after this call.
func (c *Control) DrainWrites() []QueuedWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.writes
	c.writes = nil
	return out
}

// Apply writes w into storage, honoring its target namespace. Called by
// the scheduler once per cycle boundary with the writes DrainWrites
// just returned.
func (w QueuedWrite) Apply(st *runtime.Storage) {
	switch w.Target {
	case WriteGlobal:
		st.SetGlobal(w.Name, w.Value)
	case WriteRetain:
		st.SetRetain(w.Name, w.Value)
	case WriteInstanceField:
		if inst := st.GetInstance(w.Instance); inst != nil {
			inst.SetVar(w.Name, w.Value)
		}
	case WriteLocal:
		if f := st.TopFrame(); f != nil {
			f.SetLocal(w.Name, w.Value)
		}
	case WriteLValue:
		st.SetGlobal(w.Name, w.Value)
	}
}
