package dap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/runtime"
	"github.com/stplatform/st-platform/internal/runtime/scheduler"
)

// handleStIoState answers the custom stIoState request with the
// current %I/%Q/%M snapshot on demand, the same shape the scheduler
// pushes as an `stIoState` event at every cycle boundary (spec §4.9,
// protocol.rs's IoStateEventBody) -- useful for a client that connects
// mid-run and wants the current picture without waiting for the next
// cycle.
func handleStIoState(a *Adapter, raw string) (string, error) {
	return ioStateEventBody(a.sess.currentIOSnapshot()), nil
}

// currentIOSnapshot builds an IOSnapshot synchronously from live
// storage, for stIoState's on-demand read (the scheduler only ever
// publishes one at the end of a RunCycle it drives itself). Cycle/Time
// are left zero since this snapshot is taken outside of any particular
// cycle.
func (s *session) currentIOSnapshot() scheduler.IOSnapshot {
	values := map[string]runtime.Value{}
	for name, cell := range s.prog.Storage.Globals {
		if strings.HasPrefix(name, "%") {
			values[name] = *cell
		}
	}
	forced := map[string]bool{}
	if s.control != nil {
		for addr := range s.control.ForcedIO() {
			forced[addr] = true
		}
	}
	return scheduler.IOSnapshot{Values: values, Forced: forced}
}

// handleStIoWrite applies setExpression's force/release/write protocol
// (handleIOExpression) to a direct address named by `address`/`value`
// fields rather than an evaluate-style expression pair, for a client
// panel that edits I/O values directly (spec §4.9, protocol.rs's
// IoWriteArguments).
func handleStIoWrite(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	addr := strings.TrimSpace(args.Get("address").String())
	value := strings.TrimSpace(args.Get("value").String())

	kind := classifyIO(addr)
	if kind == ioNotDirect {
		return "", fmt.Errorf("%q is not a direct address", addr)
	}
	return handleIOExpression(a, addr, kind, value)
}

// handleStVarState answers the custom stVarState request with a full
// variable snapshot across every scope (locals of the top frame,
// globals, every live instance's fields, and retains), matching
// protocol.rs's VarStateEventBody. Locals is an empty section when no
// frame is live; every section is empty before launch.
func handleStVarState(a *Adapter, raw string) (string, error) {
	s := a.sess
	if s.prog == nil {
		return newOutMessage().setRaw("locals", "[]").setRaw("globals", "[]").
			setRaw("instances", "[]").setRaw("retain", "[]").String(), nil
	}
	locals := "[]"
	if f := s.prog.Storage.TopFrame(); f != nil {
		for _, name := range f.LocalNames() {
			v, _ := f.GetLocal(name)
			locals = appendRaw(locals, varStateEntry(name, v))
		}
	}

	globalNames := make([]string, 0, len(s.prog.Storage.Globals))
	for name := range s.prog.Storage.Globals {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)
	globals, retain := "[]", "[]"
	for _, name := range globalNames {
		v, _ := s.prog.Storage.GetGlobal(name)
		entry := varStateEntry(name, v)
		globals = appendRaw(globals, entry)
		if s.prog.Storage.IsRetain(name) {
			retain = appendRaw(retain, entry)
		}
	}

	instances := "[]"
	for id := 0; id < s.prog.Storage.InstanceCount(); id++ {
		inst := s.prog.Storage.GetInstance(runtime.InstanceId(id))
		if inst == nil {
			continue
		}
		vars := "[]"
		for _, name := range inst.VarNames() {
			cell := inst.Vars[name]
			vars = appendRaw(vars, varStateEntry(name, *cell))
		}
		instances = appendRaw(instances, newOutMessage().
			set("id", id).set("name", inst.TypeName).setRaw("vars", vars).String())
	}

	body := newOutMessage().
		setRaw("locals", locals).
		setRaw("globals", globals).
		setRaw("instances", instances).
		setRaw("retain", retain)
	if f := s.prog.Storage.TopFrame(); f != nil {
		body.set("paused", s.control.Mode() == debug.Paused)
	}
	return body.String(), nil
}

func varStateEntry(name string, v runtime.Value) string {
	return newOutMessage().set("name", name).set("value", v.String()).String()
}

// handleStVarWrite applies a write/force/release action to a named
// variable in one of four scopes (protocol.rs's VarWriteArguments:
// scope, name, value?, action?, instanceId?). action defaults to
// "write" when absent, matching a plain value edit from a variables
// panel.
func handleStVarWrite(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	scope := strings.ToLower(args.Get("scope").String())
	name := args.Get("name").String()
	action := strings.ToLower(args.Get("action").String())
	if action == "" {
		action = "write"
	}
	instanceID := runtime.InstanceId(args.Get("instanceId").Int())

	s := a.sess

	if action == "release" {
		kind, ok := forceKindFor(scope)
		if !ok {
			return "", fmt.Errorf("unknown var scope %q", scope)
		}
		s.control.Release(kind, instanceID, name)
		return "{}", nil
	}

	value := args.Get("value").String()
	v, err := s.evalSource(value)
	if err != nil {
		return "", err
	}

	if action == "force" {
		kind, ok := forceKindFor(scope)
		if !ok {
			return "", fmt.Errorf("unknown var scope %q", scope)
		}
		s.control.Force(debug.ForcedValue{Kind: kind, Name: name, Instance: instanceID, Value: v})
		return varStateEntry(name, v), nil
	}

	if scope != "locals" {
		if err := s.checkWritable(name); err != nil {
			return "", err
		}
	}

	switch scope {
	case "locals":
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteLocal, Name: name, Value: v})
	case "globals":
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteGlobal, Name: name, Value: v})
	case "retain":
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteRetain, Name: name, Value: v})
	case "instances":
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteInstanceField, Instance: instanceID, Name: name, Value: v})
	default:
		return "", fmt.Errorf("unknown var scope %q", scope)
	}
	return varStateEntry(name, v), nil
}

// forceKindFor maps a VarWriteScope's wire name to the ForceKind that
// scope overlays (there is no force equivalent for per-frame locals,
// which never survive past the frame that declared them).
func forceKindFor(scope string) (debug.ForceKind, bool) {
	switch scope {
	case "globals":
		return debug.ForceGlobal, true
	case "retain":
		return debug.ForceRetain, true
	case "instances":
		return debug.ForceInstanceField, true
	default:
		return 0, false
	}
}

// handleStReload recompiles the program, optionally from a new set of
// sources (an absent `files`/`program` reuses the session's current
// sources, for a client that only wants to re-run the same files after
// an external edit), carrying over the retained-variable snapshot and
// every breakpoint whose range still exists (spec SPEC_FULL.md §4
// "stReload").
func handleStReload(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	s := a.sess

	sources := s.sources
	if files := args.Get("files"); files.IsArray() || args.Get("program").Exists() {
		resolved, _, err := readSources(args)
		if err != nil {
			return "", err
		}
		sources = resolved
	}
	if sources == nil {
		return "", fmt.Errorf("stReload: no program previously launched and none specified")
	}

	res, carried := s.reload(sources)
	if res.HasErrors() {
		return "", fmt.Errorf("reload failed: %s", diagSummary(res.Diags))
	}
	return newOutMessage().
		set("success", true).
		set("breakpointsCarried", carried).
		String(), nil
}
