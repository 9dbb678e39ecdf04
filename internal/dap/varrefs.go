package dap

import "github.com/stplatform/st-platform/internal/runtime"

// varRefKind names what a paged variables_reference handle expands to.
type varRefKind int

const (
	refLocals varRefKind = iota
	refGlobals
	refInstancesRoot
	refInstance
	refStruct
	refArray
	refReference
	refWatches
)

// varRef is one paged container, looked up by the monotonically
// increasing handle the DAP `variables` request pages through (spec
// §4.9 "lazy pagination via a monotonically increasing variables_
// reference handle"). value is resolved lazily at expansion time
// (rather than snapshotted when the handle is allocated) so it always
// reflects live storage.
type varRef struct {
	kind     varRefKind
	frame    int                // refLocals: index into Storage.Frames()
	instance runtime.InstanceId // refInstance: which instance; refInstancesRoot: unused
	value    *runtime.Value     // refStruct/refArray/refReference: the composite cell
}

// varRefTable hands out fresh handles for one DAP session; cleared and
// rebuilt every time a `stackTrace` request starts, since a paused
// runtime's frame stack can only grow/shrink between stops, never
// mid-stop.
type varRefTable struct {
	next int
	refs map[int]varRef
}

func newVarRefTable() *varRefTable {
	return &varRefTable{next: 1, refs: map[int]varRef{}}
}

// reset discards every handle, called at the start of each stackTrace
// request (the point a DAP client always re-requests frames from).
func (t *varRefTable) reset() {
	t.next = 1
	t.refs = map[int]varRef{}
}

func (t *varRefTable) alloc(r varRef) int {
	id := t.next
	t.next++
	t.refs[id] = r
	return id
}

func (t *varRefTable) get(id int) (varRef, bool) {
	r, ok := t.refs[id]
	return r, ok
}
