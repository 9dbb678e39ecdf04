package dap

import (
	"testing"

	"github.com/stplatform/st-platform/internal/debug"
)

func TestParseHitConditionVariants(t *testing.T) {
	cases := []struct {
		in   string
		op   debug.HitConditionOp
		val  int
		none bool
	}{
		{in: "", none: true},
		{in: "  ", none: true},
		{in: "==3", op: debug.HitEQ, val: 3},
		{in: ">=5", op: debug.HitGE, val: 5},
		{in: ">2", op: debug.HitGT, val: 2},
		{in: "  == 7 ", op: debug.HitEQ, val: 7},
	}
	for _, c := range cases {
		hc, err := parseHitCondition(c.in)
		if err != nil {
			t.Fatalf("parseHitCondition(%q): unexpected error: %v", c.in, err)
		}
		if c.none {
			if hc != nil {
				t.Fatalf("parseHitCondition(%q): expected nil, got %+v", c.in, hc)
			}
			continue
		}
		if hc == nil || hc.Op != c.op || hc.Value != c.val {
			t.Fatalf("parseHitCondition(%q): expected {%v %d}, got %+v", c.in, c.op, c.val, hc)
		}
	}
}

func TestParseHitConditionInvalid(t *testing.T) {
	if _, err := parseHitCondition("banana"); err == nil {
		t.Fatalf("expected an error for a non-numeric hit condition")
	}
}

func TestParseLogMessageEscapesAndExpressions(t *testing.T) {
	frags := parseLogMessage("count is {count}, literal {{brace}} end")
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d: %+v", len(frags), frags)
	}
	if frags[0].Text != "count is " || frags[0].Expr != "" {
		t.Fatalf("unexpected first fragment: %+v", frags[0])
	}
	if frags[1].Expr != "count" {
		t.Fatalf("unexpected second fragment: %+v", frags[1])
	}
	if frags[2].Text != ", literal {brace} end" {
		t.Fatalf("unexpected third fragment (escape handling): %+v", frags[2])
	}
}

func TestParseLogMessagePlainText(t *testing.T) {
	frags := parseLogMessage("no expressions here")
	if len(frags) != 1 || frags[0].Expr != "" || frags[0].Text != "no expressions here" {
		t.Fatalf("unexpected fragments: %+v", frags)
	}
}

func TestClassifyIO(t *testing.T) {
	cases := map[string]ioKind{
		"%IX0.0": ioInput,
		"%qx1.2": ioOutput,
		"%MW10":  ioMemory,
		"count":  ioNotDirect,
		"%":      ioNotDirect,
	}
	for addr, want := range cases {
		if got := classifyIO(addr); got != want {
			t.Fatalf("classifyIO(%q) = %v, want %v", addr, got, want)
		}
	}
}
