package dap

import (
	"fmt"
	"strings"

	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/parser"
	"github.com/stplatform/st-platform/internal/runtime"
)

func handleEvaluate(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	expr := args.Get("expression").String()

	tree, diags := parser.ParseStandaloneExpr(expr)
	if len(diags) > 0 {
		return "", fmt.Errorf("parse error: %s", diags[0].Message)
	}
	if name, bad := disallowedCall(tree, tree.Root, a.sess.cfg.Evaluate.AllowedBuiltins); bad {
		return "", fmt.Errorf("call to %s is not permitted in evaluate expressions", name)
	}

	v, err := a.sess.evaluator().EvalExpr(a.sess.currentScope(), tree, tree.Root)
	if err != nil {
		return "", err
	}
	return newOutMessage().
		set("result", v.String()).
		set("type", a.sess.types.String(a.sess.types.Resolve(v.Type))).
		set("variablesReference", a.sess.refForValue(v)).
		String(), nil
}

func handleSetVariable(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	ref := int(args.Get("variablesReference").Int())
	name := args.Get("name").String()
	valueSrc := args.Get("value").String()

	v, err := a.sess.evalSource(valueSrc)
	if err != nil {
		return "", err
	}

	vr, ok := a.sess.varRefs.get(ref)
	if !ok {
		return "", fmt.Errorf("unknown variablesReference %d", ref)
	}
	if err := applyVariableWrite(a.sess, vr, name, v); err != nil {
		return "", err
	}
	return newOutMessage().
		set("value", v.String()).
		set("type", a.sess.types.String(a.sess.types.Resolve(v.Type))).
		set("variablesReference", a.sess.refForValue(v)).
		String(), nil
}

// applyVariableWrite mutates the storage cell name inside the
// container vr denotes. Locals, struct fields, and array elements are
// written directly (safe: the runtime thread is blocked in
// stopAndWait while the client can issue setVariable); globals and
// instance fields go through the queued-write protocol so they apply
// at the next cycle boundary alongside every other pending write (spec
// §4.7).
func applyVariableWrite(s *session, vr varRef, name string, v runtime.Value) error {
	switch vr.kind {
	case refLocals:
		f := s.prog.Storage.FrameAt(vr.frame)
		if f == nil {
			return fmt.Errorf("frame no longer live")
		}
		f.SetLocal(name, v)
		return nil
	case refGlobals:
		if err := s.checkWritable(name); err != nil {
			return err
		}
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteGlobal, Name: name, Value: v})
		return nil
	case refInstance:
		if err := s.checkWritable(name); err != nil {
			return err
		}
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteInstanceField, Instance: vr.instance, Name: name, Value: v})
		return nil
	case refStruct:
		cell, ok := vr.value.Fields[name]
		if !ok {
			return fmt.Errorf("undefined field %s", name)
		}
		*cell = v
		return nil
	case refArray:
		idx, err := arrayIndex(name, len(vr.value.Elems))
		if err != nil {
			return err
		}
		vr.value.Elems[idx] = v
		return nil
	case refReference:
		if vr.value.Ref == nil {
			return fmt.Errorf("reference is NULL")
		}
		vr.value.Ref.Set(v)
		return nil
	default:
		return fmt.Errorf("this container's variables are read-only")
	}
}

func arrayIndex(name string, n int) (int, error) {
	name = strings.TrimPrefix(strings.TrimSuffix(strings.TrimSpace(name), "]"), "[")
	var idx int
	if _, err := fmt.Sscanf(name, "%d", &idx); err != nil {
		return 0, fmt.Errorf("invalid array index %q", name)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("array index %d out of range", idx)
	}
	return idx, nil
}

func handleSetExpression(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	expr := strings.TrimSpace(args.Get("expression").String())
	value := strings.TrimSpace(args.Get("value").String())

	if kind := classifyIO(expr); kind != ioNotDirect {
		return handleIOExpression(a, expr, kind, value)
	}

	v, err := a.sess.evalSource(value)
	if err != nil {
		return "", err
	}
	if err := writeByName(a.sess, expr, v); err != nil {
		return "", err
	}
	return setExpressionResult(a, v), nil
}

// handleIOExpression applies setExpression's force/release/write
// protocol over a direct address (spec SPEC_FULL.md §4/§5): `release`
// lifts any force; a `force: <expr>` value installs one; any other
// value is a plain write, permitted for %I and %M (write-once/queued,
// spec's Open Question decision for %M overrides the original's
// force-only behavior) but rejected for %Q, which can only ever be
// forced.
func handleIOExpression(a *Adapter, addr string, kind ioKind, value string) (string, error) {
	addr = strings.ToUpper(addr)
	if strings.EqualFold(value, "release") {
		a.sess.control.Release(debug.ForceIO, runtime.NoInstance, addr)
		cur, _ := a.sess.prog.Storage.GetGlobal(addr)
		return setExpressionResult(a, cur), nil
	}
	if rest, ok := cutFold(value, "force:"); ok {
		v, err := a.sess.evalSource(strings.TrimSpace(rest))
		if err != nil {
			return "", err
		}
		a.sess.control.Force(debug.ForcedValue{Kind: debug.ForceIO, Name: addr, Value: v})
		return setExpressionResult(a, v), nil
	}

	v, err := a.sess.evalSource(value)
	if err != nil {
		return "", err
	}
	switch kind {
	case ioInput, ioMemory:
		a.sess.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteGlobal, Name: addr, Value: v})
		return setExpressionResult(a, v), nil
	default:
		return "", fmt.Errorf("only input addresses can be written once")
	}
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// writeByName resolves name against the current frame's locals, then
// (when the frame has a self instance) that instance's fields, then the
// global table, in that order, and enqueues a write to whichever it
// finds first.
func writeByName(s *session, name string, v runtime.Value) error {
	if err := s.checkWritable(name); err != nil {
		return err
	}
	if f := s.prog.Storage.TopFrame(); f != nil {
		if _, ok := f.GetLocal(name); ok {
			s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteLocal, Name: name, Value: v})
			return nil
		}
		if f.Self != runtime.NoInstance {
			if _, ok := s.prog.Storage.LookupVar(f.Self, name); ok {
				s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteInstanceField, Instance: f.Self, Name: name, Value: v})
				return nil
			}
		}
	}
	if _, ok := s.prog.Storage.GetGlobal(strings.ToUpper(name)); ok {
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteGlobal, Name: strings.ToUpper(name), Value: v})
		return nil
	}
	if _, ok := s.prog.Storage.GetGlobal(name); ok {
		s.control.EnqueueWrite(debug.QueuedWrite{Target: debug.WriteGlobal, Name: name, Value: v})
		return nil
	}
	return fmt.Errorf("undefined variable %s", name)
}

func setExpressionResult(a *Adapter, v runtime.Value) string {
	return newOutMessage().
		set("value", v.String()).
		set("type", a.sess.types.String(a.sess.types.Resolve(v.Type))).
		set("variablesReference", a.sess.refForValue(v)).
		String()
}
