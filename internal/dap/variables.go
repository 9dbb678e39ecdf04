package dap

import (
	"fmt"
	"sort"

	"github.com/stplatform/st-platform/internal/runtime"
)

// variableEntry builds one DAP Variable object (protocol.rs's Variable:
// name, value, type, variablesReference).
func (s *session) variableEntry(name string, v runtime.Value) string {
	return newOutMessage().
		set("name", name).
		set("value", v.String()).
		set("type", s.types.String(s.types.Resolve(v.Type))).
		set("variablesReference", s.refForValue(v)).
		String()
}

// variableEntries lists every child Variable a paged container
// (varRef) exposes, for the `variables` response.
func (s *session) variableEntries(vr varRef) ([]string, error) {
	switch vr.kind {
	case refLocals:
		f := s.prog.Storage.FrameAt(vr.frame)
		if f == nil {
			return nil, nil
		}
		var out []string
		for _, name := range f.LocalNames() {
			v, _ := f.GetLocal(name)
			out = append(out, s.variableEntry(name, v))
		}
		return out, nil

	case refGlobals:
		names := make([]string, 0, len(s.prog.Storage.Globals))
		for name := range s.prog.Storage.Globals {
			names = append(names, name)
		}
		sort.Strings(names)
		var out []string
		for _, name := range names {
			v, _ := s.prog.Storage.GetGlobal(name)
			out = append(out, s.variableEntry(name, v))
		}
		return out, nil

	case refInstance:
		inst := s.prog.Storage.GetInstance(vr.instance)
		if inst == nil {
			return nil, nil
		}
		var out []string
		for _, name := range inst.VarNames() {
			cell := inst.Vars[name]
			out = append(out, s.variableEntry(name, *cell))
		}
		return out, nil

	case refStruct:
		var out []string
		for _, name := range vr.value.FieldOrder {
			out = append(out, s.variableEntry(name, *vr.value.Fields[name]))
		}
		return out, nil

	case refArray:
		var out []string
		for i, e := range vr.value.Elems {
			out = append(out, s.variableEntry(fmt.Sprintf("[%d]", i), e))
		}
		return out, nil

	case refReference:
		if vr.value.Ref == nil {
			return []string{s.variableEntry("value", runtime.Value{Kind: runtime.KindInvalid})}, nil
		}
		return []string{s.variableEntry("value", vr.value.Ref.Get())}, nil

	case refWatches:
		var out []string
		for _, w := range s.control.WatchStatuses() {
			value := w.Value
			if w.Err != nil {
				value = "<error>"
			}
			out = append(out, newOutMessage().
				set("name", w.Expr).set("value", value).
				set("variablesReference", 0).String())
		}
		return out, nil

	default:
		return nil, nil
	}
}
