package dap

import "testing"

func TestVarRefTableAllocIsMonotonic(t *testing.T) {
	tbl := newVarRefTable()
	a := tbl.alloc(varRef{kind: refLocals, frame: 0})
	b := tbl.alloc(varRef{kind: refGlobals})
	if a == b {
		t.Fatalf("expected distinct handles, got %d and %d", a, b)
	}
	if a == 0 || b == 0 {
		t.Fatalf("handle 0 is reserved for scalars, got %d and %d", a, b)
	}

	got, ok := tbl.get(a)
	if !ok || got.kind != refLocals {
		t.Fatalf("expected refLocals at handle %d, got %+v (ok=%v)", a, got, ok)
	}
}

func TestVarRefTableResetDiscardsHandles(t *testing.T) {
	tbl := newVarRefTable()
	id := tbl.alloc(varRef{kind: refGlobals})
	tbl.reset()
	if _, ok := tbl.get(id); ok {
		t.Fatalf("expected handle %d to be discarded after reset", id)
	}
	next := tbl.alloc(varRef{kind: refGlobals})
	if next != id {
		t.Fatalf("expected reset to restart numbering at 1, first alloc was %d before and %d after", id, next)
	}
}

func TestVarRefTableUnknownHandle(t *testing.T) {
	tbl := newVarRefTable()
	if _, ok := tbl.get(999); ok {
		t.Fatalf("expected unknown handle to report not-found")
	}
}
