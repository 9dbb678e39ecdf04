package types

import "testing"

func TestSubrangeBounds(t *testing.T) {
	r := NewRegistry()
	sub := r.Define(Type{Kind: KindSubrange, SubrangeBase: r.Int, SubrangeLower: 0, SubrangeUpper: 100})
	if !r.InSubrange(sub, 42) {
		t.Fatal("42 should be in 0..100")
	}
	if r.InSubrange(sub, 150) {
		t.Fatal("150 should be out of 0..100")
	}
}

func TestWideningAssignment(t *testing.T) {
	r := NewRegistry()
	if got := r.Check(r.DInt, r.Int); got != WideningOK {
		t.Fatalf("INT -> DINT should widen, got %v", got)
	}
	if got := r.Check(r.Int, r.DInt); got != NarrowingWarn {
		t.Fatalf("DINT -> INT should narrow, got %v", got)
	}
}

func TestArrayDimContains(t *testing.T) {
	d := Dim{Lower: 0, Upper: 3}
	if !d.Contains(3) || d.Contains(4) {
		t.Fatalf("dim bounds check failed")
	}
}

func TestAliasResolution(t *testing.T) {
	r := NewRegistry()
	alias := r.Define(Type{Kind: KindAlias, Name: "MyInt", AliasTarget: r.Int})
	if r.Resolve(alias) != r.Int {
		t.Fatalf("alias should resolve to INT")
	}
}
