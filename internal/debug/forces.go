package debug

import (
	"strconv"

	"github.com/stplatform/st-platform/internal/runtime"
)

// ForceKind names the storage namespace a forced value overlays (spec
// §4.8 "Forced values": globals, retains, instance fields, I/O
// addresses — the last of which live in Storage as globals keyed by
// their direct-address text, same as any other global).
type ForceKind int

const (
	ForceGlobal ForceKind = iota
	ForceRetain
	ForceInstanceField
	ForceIO
)

// ForcedValue is one active force overlay: it masks the underlying
// cell for every snapshot and evaluator read until released (spec
// §4.8: "a forced global/retain/instance field masks the underlying
// cell for the next snapshot; forced I/O addresses enter the
// scheduler's force table and override both input latching and output
// writing until released").
type ForcedValue struct {
	Kind     ForceKind
	Name     string
	Instance runtime.InstanceId
	Value    runtime.Value
}

// forceKey builds the map key a forced value is tracked under: kind
// and instance both participate so an instance field force on Name
// does not collide with a global of the same Name.
func forceKey(kind ForceKind, inst runtime.InstanceId, name string) string {
	switch kind {
	case ForceInstanceField:
		return "inst:" + strconv.Itoa(int(inst)) + ":" + name
	case ForceRetain:
		return "retain:" + name
	case ForceIO:
		return "io:" + name
	default:
		return "global:" + name
	}
}

// Force installs or replaces a force overlay.
func (c *Control) Force(fv ForcedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced[forceKey(fv.Kind, fv.Instance, fv.Name)] = fv
}

// Release removes any force overlay for the given cell, reporting
// whether one had been installed.
func (c *Control) Release(kind ForceKind, inst runtime.InstanceId, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := forceKey(kind, inst, name)
	_, ok := c.forced[key]
	delete(c.forced, key)
	return ok
}

// ForcedValueFor reports the active force for a cell, if any.
func (c *Control) ForcedValueFor(kind ForceKind, inst runtime.InstanceId, name string) (ForcedValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fv, ok := c.forced[forceKey(kind, inst, name)]
	return fv, ok
}

// ForcedIO returns every active I/O force, for the scheduler's cycle-
// boundary overlay pass (spec §4.7 step 2) and the stIoState snapshot.
func (c *Control) ForcedIO() map[string]runtime.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]runtime.Value{}
	for _, fv := range c.forced {
		if fv.Kind == ForceIO {
			out[fv.Name] = fv.Value
		}
	}
	return out
}

// ApplyForces overlays every forced global/retain/instance field onto
// st, called by the scheduler at each cycle boundary (spec §4.7 step
// 2, "applies forced globals/retains/instance fields and forced I/O
// overrides").
func (c *Control) ApplyForces(st *runtime.Storage) {
	c.mu.Lock()
	forced := make([]ForcedValue, 0, len(c.forced))
	for _, fv := range c.forced {
		forced = append(forced, fv)
	}
	c.mu.Unlock()

	for _, fv := range forced {
		switch fv.Kind {
		case ForceGlobal, ForceIO:
			st.SetGlobal(fv.Name, fv.Value)
		case ForceRetain:
			st.SetRetain(fv.Name, fv.Value)
		case ForceInstanceField:
			if inst := st.GetInstance(fv.Instance); inst != nil {
				inst.SetVar(fv.Name, fv.Value)
			}
		}
	}
}
