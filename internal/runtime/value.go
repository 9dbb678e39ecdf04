// Package runtime is the interpreting runtime: value representation,
// storage (frames, instances, globals, retains), and the direct-style
// evaluator that walks a typed cst.Tree under a symbols.Table, invoking
// a debug hook before every statement's effect. Mirrors the teacher's
// internal/interp/runtime + internal/interp/evaluator split, generalized
// from DWScript values to the IEC 61131-3 value model of spec.md §3.
package runtime

import (
	"fmt"
	"time"

	"github.com/stplatform/st-platform/internal/types"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt    // SINT/INT/DINT/LINT and unsigned/bit-string counterparts, held widened in Int
	KindReal   // REAL/LREAL, held widened in Real
	KindString // STRING/WSTRING
	KindTime   // TIME, held as a Duration
	KindDate   // DATE/TOD/DT, held as a time.Time (date-only, time-only, or both per Type)
	KindArray
	KindStruct
	KindEnum
	KindInstance  // KindFunctionBlock/KindClass value: an allocated InstanceId
	KindReference // REFERENCE TO / POINTER TO: an optional ValueRef
)

// Value is a tagged union over every ST scalar and composite runtime
// value, addressed by its Type (so SIZEOF, display, and promotion rules
// can recover the declared elementary/subrange/enum identity rather than
// just the storage Kind).
type Value struct {
	Kind Kind
	Type types.TypeId

	Bool bool
	Int  int64
	Real float64
	Str  string
	Dur  time.Duration
	Date time.Time

	Elems []Value // KindArray, row-major
	Dims  []types.Dim

	FieldOrder []string // KindStruct, declaration order
	Fields     map[string]*Value // *Value cells so member access yields an addressable ValueRef

	EnumName string // KindEnum

	Instance InstanceId // KindInstance

	Ref *ValueRef // KindReference; nil means the reference is unassigned (NULL)
}

// Zero builds the default-initialized Value for t (FALSE, 0, 0.0, empty
// string, T#0s, arrays/structs recursively zeroed), matching IEC's
// implicit-initialization rule for declarations without `:=`.
func Zero(reg *types.Registry, t types.TypeId) Value {
	if t == types.Invalid {
		return Value{Kind: KindInvalid}
	}
	rt := reg.Get(reg.Resolve(t))
	switch rt.Kind {
	case types.KindElementary:
		if rt.Elementary == types.ElemBool {
			return Value{Kind: KindBool, Type: t}
		}
		if rt.Elementary.IsFloat() {
			return Value{Kind: KindReal, Type: t}
		}
		return Value{Kind: KindInt, Type: t}
	case types.KindTemporal:
		switch rt.Temporal {
		case types.TemporalTime:
			return Value{Kind: KindTime, Type: t}
		default:
			return Value{Kind: KindDate, Type: t}
		}
	case types.KindString, types.KindWString:
		return Value{Kind: KindString, Type: t}
	case types.KindEnum:
		name := ""
		if len(rt.EnumValues) > 0 {
			name = rt.EnumValues[0]
		}
		return Value{Kind: KindEnum, Type: t, EnumName: name}
	case types.KindSubrange:
		return Zero(reg, rt.SubrangeBase)
	case types.KindArray:
		total := 1
		for _, d := range rt.ArrayDims {
			total *= int(d.Len())
		}
		elems := make([]Value, total)
		zeroElem := Zero(reg, rt.ArrayElem)
		for i := range elems {
			elems[i] = zeroElem
		}
		return Value{Kind: KindArray, Type: t, Elems: elems, Dims: rt.ArrayDims}
	case types.KindStruct, types.KindUnion:
		order := make([]string, len(rt.Fields))
		fields := make(map[string]*Value, len(rt.Fields))
		for i, f := range rt.Fields {
			order[i] = f.Name
			v := Zero(reg, f.Type)
			fields[f.Name] = &v
		}
		return Value{Kind: KindStruct, Type: t, FieldOrder: order, Fields: fields}
	case types.KindPointer, types.KindReference:
		return Value{Kind: KindReference, Type: t}
	case types.KindFunctionBlock, types.KindClass:
		return Value{Kind: KindInstance, Type: t, Instance: NoInstance}
	default:
		return Value{Kind: KindInvalid, Type: t}
	}
}

// Clone deep-copies v, so struct/array assignment and retain snapshots
// never alias storage cells through shared slices/maps.
func (v Value) Clone() Value {
	out := v
	if v.Elems != nil {
		out.Elems = make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	if v.Fields != nil {
		out.Fields = make(map[string]*Value, len(v.Fields))
		for k, f := range v.Fields {
			cloned := f.Clone()
			out.Fields[k] = &cloned
		}
		out.FieldOrder = append([]string(nil), v.FieldOrder...)
	}
	return out
}

// Equal reports pairwise value equality, used by watchpoint
// "changed since last pause" comparisons (spec §4.8) and CASE label
// matching.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt, KindEnum:
		return v.Int == o.Int && v.EnumName == o.EnumName
	case KindReal:
		return v.Real == o.Real
	case KindString:
		return v.Str == o.Str
	case KindTime:
		return v.Dur == o.Dur
	case KindDate:
		return v.Date.Equal(o.Date)
	case KindInstance:
		return v.Instance == o.Instance
	case KindReference:
		return v.Ref == o.Ref
	case KindArray:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(v.FieldOrder) != len(o.FieldOrder) {
			return false
		}
		for _, name := range v.FieldOrder {
			if !v.Fields[name].Equal(*o.Fields[name]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// AsInt64 widens an integer/bool/enum-ordinal value for arithmetic and
// index computation.
func (v Value) AsInt64() int64 {
	switch v.Kind {
	case KindInt, KindEnum:
		return v.Int
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindReal:
		return int64(v.Real)
	default:
		return 0
	}
}

// AsFloat64 widens an integer/real value for mixed arithmetic.
func (v Value) AsFloat64() float64 {
	if v.Kind == KindReal {
		return v.Real
	}
	return float64(v.AsInt64())
}

// String renders v for DAP variable display and log-message formatting.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindReal:
		return fmt.Sprintf("%g", v.Real)
	case KindString:
		return "'" + v.Str + "'"
	case KindTime:
		return "T#" + v.Dur.String()
	case KindDate:
		return v.Date.Format(time.RFC3339)
	case KindEnum:
		return v.EnumName
	case KindInstance:
		return fmt.Sprintf("<instance #%d>", v.Instance)
	case KindReference:
		if v.Ref == nil {
			return "NULL"
		}
		return "REF"
	case KindArray:
		return fmt.Sprintf("<array[%d]>", len(v.Elems))
	case KindStruct:
		return fmt.Sprintf("<struct %d fields>", len(v.FieldOrder))
	default:
		return "<invalid>"
	}
}
