package runtime

import "github.com/google/uuid"

// FrameId stably identifies a Frame while it exists on the call stack
// (spec §3 "Runtime Storage": "FrameId is stable while the frame exists").
type FrameId int

// InstanceId identifies an allocated function-block/class instance in
// the Storage's instance arena.
type InstanceId int

// NoInstance is the sentinel InstanceId for "no self instance" / "no
// parent" in the inheritance chain.
const NoInstance InstanceId = -1

// ValueRef is an opaque token that resolves to a specific storage cell
// (local, global, retain, or instance field), enabling REF(x), p^,
// ADR(x), and ?=. It is implemented as a direct pointer to the cell:
// Go has no interior-pointer-into-a-map primitive, so locals/globals/
// instance fields are stored as *Value from the start, and a ValueRef
// is simply that pointer — valid for as long as the owning frame/
// instance/global map entry is not itself discarded.
type ValueRef struct {
	cell *Value
}

// RefFor wraps a storage cell pointer as a ValueRef. Exported for the
// evaluator's ADR/REF/dereference handling.
func RefFor(cell *Value) *ValueRef { return &ValueRef{cell: cell} }

// Get dereferences a ValueRef to its current value.
func (r *ValueRef) Get() Value { return *r.cell }

// Set assigns through a ValueRef in place, never reallocating the
// backing cell (spec §4.6 invariant: "assigning through a ValueRef
// never resizes structures").
func (r *ValueRef) Set(v Value) { *r.cell = v }

// Frame is one activation record: a POU's locals plus, for a method/FB
// body, the instance it executes against.
type Frame struct {
	Id       FrameId
	PouName  string
	Self     InstanceId
	Locals   map[string]*Value
	order    []string // declaration order, for stack-trace/locals display
}

// Instance is one allocated function-block/class object: its type name,
// an optional parent in the inheritance chain, and its own field
// storage.
type Instance struct {
	TypeName string
	Parent   InstanceId
	Vars     map[string]*Value
	order    []string
}

// RetainSnapshot is an opaque byte-blob-shaped retained-variable
// snapshot (spec §1 "no persistence format beyond an opaque retained-
// variable snapshot"): an identified, independently cloned copy of
// every retained global's value at the moment it was taken.
type RetainSnapshot struct {
	ID   string
	Vars map[string]Value
}

// Storage owns every disjoint runtime namespace: globals (with a
// RETAIN subset), the frame stack, and the instance arena (spec §3
// "Runtime Storage").
type Storage struct {
	Globals     map[string]*Value
	retainNames map[string]bool

	frames      []*Frame
	nextFrameId FrameId

	instances []*Instance
}

// NewStorage creates empty storage.
func NewStorage() *Storage {
	return &Storage{
		Globals:     map[string]*Value{},
		retainNames: map[string]bool{},
	}
}

// DeclareGlobal registers a global (optionally RETAIN) with its initial
// value. Re-declaring an existing name overwrites its value but keeps
// its retain flag sticky once set.
func (s *Storage) DeclareGlobal(name string, v Value, retain bool) {
	cell := new(Value)
	*cell = v
	s.Globals[name] = cell
	if retain {
		s.retainNames[name] = true
	}
}

func (s *Storage) GetGlobal(name string) (Value, bool) {
	cell, ok := s.Globals[name]
	if !ok {
		return Value{}, false
	}
	return *cell, true
}

func (s *Storage) SetGlobal(name string, v Value) bool {
	cell, ok := s.Globals[name]
	if !ok {
		return false
	}
	*cell = v
	return true
}

// RefForGlobal returns a ValueRef for name, declaring it with a Zero
// value first if it does not yet exist (used for VAR_EXTERNAL linkage
// resolved late, and for %M*/%I*/%Q* direct-address backing cells).
func (s *Storage) RefForGlobal(name string) *ValueRef {
	cell, ok := s.Globals[name]
	if !ok {
		cell = new(Value)
		s.Globals[name] = cell
	}
	return RefFor(cell)
}

func (s *Storage) IsRetain(name string) bool { return s.retainNames[name] }

func (s *Storage) SetRetain(name string, v Value) bool {
	if !s.retainNames[name] {
		return false
	}
	return s.SetGlobal(name, v)
}

func (s *Storage) GetRetain(name string) (Value, bool) {
	if !s.retainNames[name] {
		return Value{}, false
	}
	return s.GetGlobal(name)
}

// RetainSnapshotTake clones every retained global into a new
// RetainSnapshot, independently of ongoing mutation (spec §4.6
// retain_snapshot).
func (s *Storage) RetainSnapshotTake() RetainSnapshot {
	vars := make(map[string]Value, len(s.retainNames))
	for name := range s.retainNames {
		if cell, ok := s.Globals[name]; ok {
			vars[name] = cell.Clone()
		}
	}
	return RetainSnapshot{ID: uuid.NewString(), Vars: vars}
}

// RetainSnapshotApply restores every variable present in snap into the
// current globals, for names still declared RETAIN (spec §4.6
// apply_retain_snapshot, used across reloads).
func (s *Storage) RetainSnapshotApply(snap RetainSnapshot) {
	for name, v := range snap.Vars {
		if !s.retainNames[name] {
			continue
		}
		s.SetGlobal(name, v.Clone())
	}
}

// PushFrame allocates a new activation record for pou (optionally bound
// to a self instance) and pushes it onto the call stack.
func (s *Storage) PushFrame(pou string, self InstanceId) *Frame {
	f := &Frame{
		Id:      s.nextFrameId,
		PouName: pou,
		Self:    self,
		Locals:  map[string]*Value{},
	}
	s.nextFrameId++
	s.frames = append(s.frames, f)
	return f
}

// PopFrame removes the top frame.
func (s *Storage) PopFrame() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// TopFrame returns the currently executing frame, or nil if the call
// stack is empty (top-level/cycle-boundary context).
func (s *Storage) TopFrame() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth returns the current call-stack depth, used by the debug
// control's StepOver/StepOut depth comparisons.
func (s *Storage) Depth() int { return len(s.frames) }

// FrameAt returns the frame at depth i (0 == outermost), for DAP
// stackTrace paging.
func (s *Storage) FrameAt(i int) *Frame {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i]
}

// Frames returns the live call stack, outermost first.
func (s *Storage) Frames() []*Frame { return s.frames }

func (f *Frame) SetLocal(name string, v Value) {
	if cell, ok := f.Locals[name]; ok {
		*cell = v
		return
	}
	cell := new(Value)
	*cell = v
	f.Locals[name] = cell
	f.order = append(f.order, name)
}

func (f *Frame) GetLocal(name string) (Value, bool) {
	cell, ok := f.Locals[name]
	if !ok {
		return Value{}, false
	}
	return *cell, true
}

func (f *Frame) RefForLocal(name string) *ValueRef {
	cell, ok := f.Locals[name]
	if !ok {
		cell = new(Value)
		f.Locals[name] = cell
		f.order = append(f.order, name)
	}
	return RefFor(cell)
}

// LocalNames returns the frame's locals in declaration order.
func (f *Frame) LocalNames() []string { return f.order }

// CreateInstance allocates a new function-block/class instance of
// typeName with an optional parent in the inheritance chain.
func (s *Storage) CreateInstance(typeName string, parent InstanceId) InstanceId {
	id := InstanceId(len(s.instances))
	s.instances = append(s.instances, &Instance{
		TypeName: typeName,
		Parent:   parent,
		Vars:     map[string]*Value{},
	})
	return id
}

// InstanceCount returns how many instances have been allocated, so a
// caller can enumerate every live InstanceId as 0..InstanceCount()-1
// (the DAP adapter's stVarState "Instances" scope listing).
func (s *Storage) InstanceCount() int { return len(s.instances) }

func (s *Storage) GetInstance(id InstanceId) *Instance {
	if id < 0 || int(id) >= len(s.instances) {
		return nil
	}
	return s.instances[id]
}

func (inst *Instance) SetVar(name string, v Value) {
	if cell, ok := inst.Vars[name]; ok {
		*cell = v
		return
	}
	cell := new(Value)
	*cell = v
	inst.Vars[name] = cell
	inst.order = append(inst.order, name)
}

// LookupVar walks the parent chain (spec §3: "Parent pointers form the
// inheritance chain for FB/class field lookup") to find name, returning
// the owning instance's ValueRef for it.
func (s *Storage) LookupVar(id InstanceId, name string) (*ValueRef, bool) {
	for cur := id; cur != NoInstance; {
		inst := s.GetInstance(cur)
		if inst == nil {
			return nil, false
		}
		if cell, ok := inst.Vars[name]; ok {
			return RefFor(cell), true
		}
		cur = inst.Parent
	}
	return nil, false
}

// VarNames returns inst's own fields (not inherited) in declaration order.
func (inst *Instance) VarNames() []string { return inst.order }
