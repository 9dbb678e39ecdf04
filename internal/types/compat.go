package types

// Compatibility is Check's verdict on whether a value of type src may be
// assigned to a variable of type dst without an explicit conversion,
// and whether doing so narrows (loses range/precision) — used by the
// semantic analyzer to emit IncompatibleAssignment / ImplicitConversion.
type Compatibility int

const (
	Incompatible Compatibility = iota
	Exact
	WideningOK
	NarrowingWarn
)

// Check classifies an assignment dst := src.
func (r *Registry) Check(dst, src TypeId) Compatibility {
	dst, src = r.Resolve(dst), r.Resolve(src)
	if dst == src {
		return Exact
	}
	dt, st := r.Get(dst), r.Get(src)

	if dt.Kind == KindSubrange {
		inner := r.Check(dt.SubrangeBase, src)
		if inner == Incompatible {
			return Incompatible
		}
		return NarrowingWarn
	}
	if st.Kind == KindSubrange {
		return r.Check(dst, st.SubrangeBase)
	}

	if dt.Kind == KindElementary && st.Kind == KindElementary {
		if dt.Elementary.IsInteger() && st.Elementary.IsInteger() {
			if dt.Elementary.WiderThan(st.Elementary) || dt.Elementary == st.Elementary {
				return WideningOK
			}
			return NarrowingWarn
		}
		if dt.Elementary.IsFloat() && st.Elementary.IsInteger() {
			return WideningOK
		}
		if dt.Elementary.IsFloat() && st.Elementary.IsFloat() {
			if dt.Elementary.WiderThan(st.Elementary) || dt.Elementary == st.Elementary {
				return WideningOK
			}
			return NarrowingWarn
		}
		if dt.Elementary.IsInteger() && st.Elementary.IsFloat() {
			return NarrowingWarn
		}
		return Incompatible
	}

	if dt.Kind == KindString && st.Kind == KindString {
		if dt.StrMaxLen == 0 || dt.StrMaxLen >= st.StrMaxLen {
			return Exact
		}
		return NarrowingWarn
	}

	if dt.Kind == KindClass && st.Kind == KindClass {
		if r.classExtends(src, dst) {
			return WideningOK
		}
		return Incompatible
	}
	if dt.Kind == KindFunctionBlock && st.Kind == KindFunctionBlock {
		if dst == src {
			return Exact
		}
		return Incompatible
	}

	return Incompatible
}

// classExtends reports whether candidate's parent chain includes base.
func (r *Registry) classExtends(candidate, base TypeId) bool {
	seen := map[TypeId]bool{}
	for candidate != Invalid && !seen[candidate] {
		if candidate == base {
			return true
		}
		seen[candidate] = true
		candidate = r.Get(candidate).Extends
	}
	return false
}

// InSubrange reports whether v falls within [lower, upper] for a
// KindSubrange type id (the spec §8 "p := 150 emits OutOfRange" check).
func (r *Registry) InSubrange(id TypeId, v int64) bool {
	t := r.Get(r.Resolve(id))
	if t.Kind != KindSubrange {
		return true
	}
	return v >= t.SubrangeLower && v <= t.SubrangeUpper
}

// Contains reports whether index i is within dimension d's bounds.
func (d Dim) Contains(i int64) bool { return i >= d.Lower && i <= d.Upper }
