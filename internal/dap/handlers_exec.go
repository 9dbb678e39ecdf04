package dap

import (
	"fmt"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/runtime"
)

func handleThreads(a *Adapter, raw string) (string, error) {
	resp := "[]"
	for _, t := range a.sess.allThreads() {
		resp = appendRaw(resp, newOutMessage().set("id", int(t)).set("name", a.sess.threadName(t)).String())
	}
	return newOutMessage().setRaw("threads", resp).String(), nil
}

// handleStackTrace builds the paused call stack (spec §4.9 "stackTrace
// reports the live call stack, innermost frame first"). The runtime
// tracks exactly one call stack regardless of thread count (spec §5),
// so every thread id reports the same frames; only the innermost
// frame's location is precisely known (tracked by debug.Control per
// observation) -- outer frames report their owning POU with no
// statement-level position.
func handleStackTrace(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	threadID := debug.ThreadId(args.Get("threadId").Int())
	a.sess.varRefs.reset()

	frames := a.sess.prog.Storage.Frames()
	loc, _ := a.sess.control.ThreadLocation(threadID)

	resp := "[]"
	n := len(frames)
	for i := n - 1; i >= 0; i-- {
		f := frames[i]
		id := n - 1 - i
		entry := newOutMessage().set("id", id).set("name", f.PouName)
		if i == n-1 {
			entry.set("line", loc.Start.Line).set("column", loc.Start.Column)
		} else {
			entry.set("line", 0).set("column", 0)
		}
		if tree, ok := treeForPou(a.sess, f.PouName); ok && tree.File != "" {
			entry.setRaw("source", newOutMessage().set("name", tree.File).set("path", tree.File).String())
		}
		resp = appendRaw(resp, entry.String())
	}
	return newOutMessage().setRaw("stackFrames", resp).set("totalFrames", n).String(), nil
}

// treeForPou finds the tree a POU's body lives in, resolving through
// the symbol table the same way runtime.Evaluator.treeFor does
// internally (duplicated here since that method is unexported).
func treeForPou(s *session, name string) (*cst.Tree, bool) {
	id, err := s.table.Resolve(s.table.Root, name)
	if err != nil {
		return nil, false
	}
	tree, ok := s.prog.Trees[id]
	return tree, ok
}

func handleScopes(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	frameID := int(args.Get("frameId").Int())

	frames := a.sess.prog.Storage.Frames()
	n := len(frames)
	idx := n - 1 - frameID

	resp := "[]"
	if idx >= 0 && idx < n {
		ref := a.sess.varRefs.alloc(varRef{kind: refLocals, frame: idx})
		resp = appendRaw(resp, scopeEntry("Locals", ref, false))
		if frames[idx].Self != runtime.NoInstance {
			iref := a.sess.varRefs.alloc(varRef{kind: refInstance, instance: frames[idx].Self})
			resp = appendRaw(resp, scopeEntry("Instance", iref, false))
		}
	}
	gref := a.sess.varRefs.alloc(varRef{kind: refGlobals})
	resp = appendRaw(resp, scopeEntry("Globals", gref, true))
	wref := a.sess.varRefs.alloc(varRef{kind: refWatches})
	resp = appendRaw(resp, scopeEntry("Watch", wref, false))

	return newOutMessage().setRaw("scopes", resp).String(), nil
}

func scopeEntry(name string, ref int, expensive bool) string {
	return newOutMessage().set("name", name).set("variablesReference", ref).set("expensive", expensive).String()
}

func handleVariables(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	ref := int(args.Get("variablesReference").Int())
	vr, ok := a.sess.varRefs.get(ref)
	if !ok {
		return "", fmt.Errorf("unknown variablesReference %d", ref)
	}
	entries, err := a.sess.variableEntries(vr)
	if err != nil {
		return "", err
	}
	resp := "[]"
	for _, e := range entries {
		resp = appendRaw(resp, e)
	}
	return newOutMessage().setRaw("variables", resp).String(), nil
}

func handleContinue(a *Adapter, raw string) (string, error) {
	a.sess.control.Continue()
	return newOutMessage().set("allThreadsContinued", true).String(), nil
}

func handlePause(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	t := debug.ThreadId(args.Get("threadId").Int())
	a.sess.control.Pause(&t)
	return "", nil
}

func handleNext(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	t := debug.ThreadId(args.Get("threadId").Int())
	a.sess.control.StepOver(t)
	return "", nil
}

func handleStepIn(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	t := debug.ThreadId(args.Get("threadId").Int())
	a.sess.control.StepIn(t)
	return "", nil
}

func handleStepOut(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	t := debug.ThreadId(args.Get("threadId").Int())
	a.sess.control.StepOut(t)
	return "", nil
}
