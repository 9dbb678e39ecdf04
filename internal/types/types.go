// Package types holds the type registry: an arena of Type values
// addressed by opaque TypeId handles, mirroring the teacher's
// internal/types package (elementary/compound/class type hierarchy)
// generalized to IEC 61131-3's type system (subranges, direct-address
// compatible bit strings, ANY_* generics).
package types

import "fmt"

// TypeId is an opaque handle into a Registry's type arena.
type TypeId int

// Invalid is the zero TypeId, used as a "not yet resolved" sentinel.
const Invalid TypeId = 0

// Kind discriminates the Type variant stored at a TypeId.
type Kind int

const (
	KindInvalid Kind = iota
	KindElementary
	KindTemporal
	KindString
	KindWString
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindPointer
	KindReference
	KindSubrange
	KindFunctionBlock
	KindClass
	KindInterface
	KindAlias
	KindAny
)

// Elementary names the IEC scalar and bit-string types.
type Elementary int

const (
	ElemInvalid Elementary = iota
	ElemBool
	ElemByte
	ElemWord
	ElemDWord
	ElemLWord
	ElemSInt
	ElemInt
	ElemDInt
	ElemLInt
	ElemUSInt
	ElemUInt
	ElemUDInt
	ElemULInt
	ElemReal
	ElemLReal
)

// Width returns the declared bit width of an elementary type, used by
// SIZEOF and by promotion-rule resolution.
func (e Elementary) Width() int {
	switch e {
	case ElemBool, ElemByte, ElemSInt, ElemUSInt:
		return 8
	case ElemWord, ElemInt, ElemUInt:
		return 16
	case ElemDWord, ElemDInt, ElemUDInt, ElemReal:
		return 32
	case ElemLWord, ElemLInt, ElemULInt, ElemLReal:
		return 64
	default:
		return 0
	}
}

func (e Elementary) IsInteger() bool {
	switch e {
	case ElemSInt, ElemInt, ElemDInt, ElemLInt, ElemUSInt, ElemUInt, ElemUDInt, ElemULInt,
		ElemByte, ElemWord, ElemDWord, ElemLWord:
		return true
	default:
		return false
	}
}

func (e Elementary) IsFloat() bool { return e == ElemReal || e == ElemLReal }

// rank orders integer promotion width for "e has a wider numeric type
// than x" assignment checks (spec §8: x := e where e is wider than x).
func (e Elementary) rank() int {
	switch e {
	case ElemBool:
		return 0
	case ElemSInt, ElemUSInt, ElemByte:
		return 1
	case ElemInt, ElemUInt, ElemWord:
		return 2
	case ElemDInt, ElemUDInt, ElemDWord, ElemReal:
		return 3
	case ElemLInt, ElemULInt, ElemLWord, ElemLReal:
		return 4
	default:
		return -1
	}
}

// WiderThan reports whether e has strictly greater numeric range/
// precision than other.
func (e Elementary) WiderThan(other Elementary) bool { return e.rank() > other.rank() }

// Temporal names the IEC time/date family.
type Temporal int

const (
	TemporalInvalid Temporal = iota
	TemporalTime
	TemporalDate
	TemporalTOD
	TemporalDT
)

// Any names the ANY_* generic family used for built-in/overloaded
// argument matching.
type Any int

const (
	AnyInvalid Any = iota
	AnyAny
	AnyNum
	AnyInt
	AnyReal
	AnyBit
	AnyString
	AnyDate
)

// Dim is one array dimension's constant-folded bounds.
type Dim struct {
	Lower, Upper int64
}

func (d Dim) Len() int64 { return d.Upper - d.Lower + 1 }

// Field is a struct/union member in declaration order.
type Field struct {
	Name string
	Type TypeId
}

// Type is the variant stored at a TypeId. Exactly one of the kind-
// specific fields is meaningful, selected by Kind.
type Type struct {
	Kind Kind
	Name string // declared name; "" for anonymous types (inline arrays, etc.)

	Elementary Elementary
	Temporal   Temporal
	Any        Any

	StrMaxLen int // KindString / KindWString

	ArrayDims []Dim  // KindArray
	ArrayElem TypeId // KindArray

	Fields []Field // KindStruct / KindUnion

	EnumValues []string       // KindEnum, declaration order
	EnumOrdinal map[string]int64 // KindEnum

	PointerTarget   TypeId // KindPointer
	ReferenceTarget TypeId // KindReference

	SubrangeBase  TypeId // KindSubrange
	SubrangeLower int64
	SubrangeUpper int64

	AliasTarget TypeId // KindAlias

	Extends    TypeId   // KindFunctionBlock / KindClass: parent FB/class, Invalid if none
	Implements []TypeId // KindClass: interfaces
}

// Registry is an arena of Types addressed by TypeId, plus convenience
// ids for the IEC elementary/temporal/generic types that are always
// present.
type Registry struct {
	types []Type
	byKey map[string]TypeId // stable lookup for elementary/temporal singletons

	Bool, Byte, Word, DWord, LWord                   TypeId
	SInt, Int, DInt, LInt, USInt, UInt, UDInt, ULInt TypeId
	Real, LReal                                      TypeId
	Time, Date, TOD, DT                              TypeId
	AnyAny, AnyNum, AnyInt, AnyReal, AnyBit, AnyStr   TypeId
}

// NewRegistry creates a Registry pre-populated with every elementary,
// temporal, and ANY_* type.
func NewRegistry() *Registry {
	r := &Registry{byKey: map[string]TypeId{}}
	r.types = append(r.types, Type{}) // TypeId 0 == Invalid

	elem := func(e Elementary, name string) TypeId {
		return r.intern(Type{Kind: KindElementary, Elementary: e, Name: name})
	}
	r.Bool = elem(ElemBool, "BOOL")
	r.Byte = elem(ElemByte, "BYTE")
	r.Word = elem(ElemWord, "WORD")
	r.DWord = elem(ElemDWord, "DWORD")
	r.LWord = elem(ElemLWord, "LWORD")
	r.SInt = elem(ElemSInt, "SINT")
	r.Int = elem(ElemInt, "INT")
	r.DInt = elem(ElemDInt, "DINT")
	r.LInt = elem(ElemLInt, "LINT")
	r.USInt = elem(ElemUSInt, "USINT")
	r.UInt = elem(ElemUInt, "UINT")
	r.UDInt = elem(ElemUDInt, "UDINT")
	r.ULInt = elem(ElemULInt, "ULINT")
	r.Real = elem(ElemReal, "REAL")
	r.LReal = elem(ElemLReal, "LREAL")

	temp := func(t Temporal, name string) TypeId {
		return r.intern(Type{Kind: KindTemporal, Temporal: t, Name: name})
	}
	r.Time = temp(TemporalTime, "TIME")
	r.Date = temp(TemporalDate, "DATE")
	r.TOD = temp(TemporalTOD, "TOD")
	r.DT = temp(TemporalDT, "DT")

	any := func(a Any, name string) TypeId {
		return r.intern(Type{Kind: KindAny, Any: a, Name: name})
	}
	r.AnyAny = any(AnyAny, "ANY")
	r.AnyNum = any(AnyNum, "ANY_NUM")
	r.AnyInt = any(AnyInt, "ANY_INT")
	r.AnyReal = any(AnyReal, "ANY_REAL")
	r.AnyBit = any(AnyBit, "ANY_BIT")
	r.AnyStr = any(AnyString, "ANY_STRING")

	return r
}

func (r *Registry) intern(t Type) TypeId {
	id := TypeId(len(r.types))
	r.types = append(r.types, t)
	if t.Name != "" {
		r.byKey[t.Name] = id
	}
	return id
}

// Define registers a new named or anonymous type and returns its id.
func (r *Registry) Define(t Type) TypeId { return r.intern(t) }

// Get dereferences a TypeId. It panics on Invalid or an out-of-range id,
// since a TypeId should never outlive the Registry that minted it.
func (r *Registry) Get(id TypeId) *Type {
	if int(id) <= 0 || int(id) >= len(r.types) {
		panic(fmt.Sprintf("types: invalid TypeId %d", id))
	}
	return &r.types[id]
}

// Lookup finds a previously interned elementary/temporal/named type by
// its declared name (case-sensitive; callers fold case themselves since
// folding rules belong to the symbol table, not the registry).
func (r *Registry) Lookup(name string) (TypeId, bool) {
	id, ok := r.byKey[name]
	return id, ok
}

// Resolve follows KindAlias chains to the underlying non-alias type id.
// Invalid resolves to Invalid.
func (r *Registry) Resolve(id TypeId) TypeId {
	if id == Invalid {
		return Invalid
	}
	seen := map[TypeId]bool{}
	for {
		t := r.Get(id)
		if t.Kind != KindAlias || seen[id] {
			return id
		}
		seen[id] = true
		id = t.AliasTarget
	}
}

// String renders a type id's declared or structural name, for
// diagnostics and DAP variable type display.
func (r *Registry) String(id TypeId) string {
	if id == Invalid {
		return "<unresolved>"
	}
	t := r.Get(id)
	if t.Name != "" {
		return t.Name
	}
	switch t.Kind {
	case KindArray:
		return "ARRAY OF " + r.String(t.ArrayElem)
	case KindPointer:
		return "POINTER TO " + r.String(t.PointerTarget)
	case KindReference:
		return "REFERENCE TO " + r.String(t.ReferenceTarget)
	case KindSubrange:
		return fmt.Sprintf("%s(%d..%d)", r.String(t.SubrangeBase), t.SubrangeLower, t.SubrangeUpper)
	case KindString:
		return fmt.Sprintf("STRING[%d]", t.StrMaxLen)
	case KindWString:
		return fmt.Sprintf("WSTRING[%d]", t.StrMaxLen)
	default:
		return "<anonymous>"
	}
}
