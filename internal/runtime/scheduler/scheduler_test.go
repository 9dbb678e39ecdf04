package scheduler

import (
	"testing"
	"time"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/semantic"
	"github.com/stplatform/st-platform/internal/symbols"
	"github.com/stplatform/st-platform/internal/types"
)

func compile(t *testing.T, src string) *runtime.Program {
	t.Helper()
	tree, diags := parser.ParseFile("test.st", src)
	if len(diags) != 0 {
		t.Fatalf("unexpected parse diagnostics: %+v", diags)
	}
	table := symbols.NewTable()
	symbols.NewBuilder(table).BuildFile("test.st", tree)
	reg := types.NewRegistry()
	if diags := semantic.NewTypeResolver(table, reg).ResolveFile(tree); len(diags) != 0 {
		t.Fatalf("unexpected type diagnostics: %+v", diags)
	}
	trees := map[string]*cst.Tree{"test.st": tree}
	return runtime.Build(table, reg, trees)
}

func TestDirectConfigurationRunsEveryCycle(t *testing.T) {
	src := `PROGRAM Main
VAR
  count : INT;
END_VAR
count := count + 1;
END_PROGRAM

CONFIGURATION Cfg
  PROGRAM Inst : Main;
END_CONFIGURATION
`
	prog := compile(t, src)
	if len(prog.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(prog.Tasks))
	}
	sched := New(nil, prog, nil, FaultSafeHalt)
	sched.Start(time.Unix(0, 0))

	for i := 0; i < 3; i++ {
		if err := sched.RunCycle(time.Unix(0, 0)); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	v, ok := prog.Storage.GetGlobal("Inst")
	if !ok {
		t.Fatalf("expected Inst global")
	}
	inst := prog.Storage.GetInstance(v.Instance)
	if inst == nil {
		t.Fatalf("expected Inst instance allocated")
	}
	count, ok := prog.Storage.LookupVar(v.Instance, "count")
	if !ok {
		t.Fatalf("expected count field")
	}
	if got := count.Get().AsInt64(); got != 3 {
		t.Fatalf("expected count == 3 after 3 cycles, got %d", got)
	}
}

func TestIntervalTaskDoesNotBurstAfterLongGap(t *testing.T) {
	src := `PROGRAM Main
VAR
  count : INT;
END_VAR
count := count + 1;
END_PROGRAM

CONFIGURATION Cfg
  RESOURCE Res ON PLC
    TASK Slow (INTERVAL := T#100ms, PRIORITY := 0);
    PROGRAM Inst WITH Slow : Main;
  END_RESOURCE
END_CONFIGURATION
`
	prog := compile(t, src)
	sched := New(nil, prog, nil, FaultSafeHalt)
	start := time.Unix(0, 0)
	sched.Start(start)

	// First cycle always fires (expected = floor(0/interval)+1 == 1).
	if err := sched.RunCycle(start); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	// A huge forward jump must not replay every missed interval in one
	// cycle: only one more fire is due, no matter how much time passed.
	if err := sched.RunCycle(start.Add(10 * time.Second)); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	v, _ := prog.Storage.GetGlobal("Inst")
	count, _ := prog.Storage.LookupVar(v.Instance, "count")
	if got := count.Get().AsInt64(); got != 2 {
		t.Fatalf("expected count == 2 (no burst catch-up), got %d", got)
	}
}

func TestSinglePulseFiresOnce(t *testing.T) {
	src := `PROGRAM Main
VAR
  count : INT;
END_VAR
count := count + 1;
END_PROGRAM

VAR_GLOBAL
  trig : BOOL;
END_VAR

CONFIGURATION Cfg
  RESOURCE Res ON PLC
    TASK Trigger (SINGLE := trig, PRIORITY := 0);
    PROGRAM Inst WITH Trigger : Main;
  END_RESOURCE
END_CONFIGURATION
`
	prog := compile(t, src)
	sched := New(nil, prog, nil, FaultSafeHalt)
	sched.Start(time.Unix(0, 0))

	if err := sched.RunCycle(time.Unix(0, 0)); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	prog.Storage.SetGlobal("trig", runtime.Value{Kind: runtime.KindBool, Bool: true})
	if err := sched.RunCycle(time.Unix(0, 0)); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	// Held high across a third cycle: must not fire again.
	if err := sched.RunCycle(time.Unix(0, 0)); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}

	v, _ := prog.Storage.GetGlobal("Inst")
	count, _ := prog.Storage.LookupVar(v.Instance, "count")
	if got := count.Get().AsInt64(); got != 1 {
		t.Fatalf("expected count == 1 (single pulse), got %d", got)
	}
}
