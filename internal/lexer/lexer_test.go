package lexer

import (
	"strings"
	"testing"
)

// reassemble concatenates every token's text, proving the round-trip
// property the CST layer depends on: the token stream tiles the source
// with no gaps or overlaps.
func reassemble(toks []Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func TestRoundTrip(t *testing.T) {
	srcs := []string{
		"PROGRAM Main\n  x := 1;\n  y := 2;\nEND_PROGRAM\n",
		"(* a (* b *) c *) x := 1;",
		"y := 'it''s $41 ok';",
		"z := 16#FF + 2#1010 + 8#77 + 1_000_000;",
		"{pragma text} VAR x : INT; END_VAR",
	}
	for _, src := range srcs {
		toks := New(src).LexAll()
		if got := reassemble(toks); got != src {
			t.Fatalf("round trip mismatch:\nwant %q\ngot  %q", src, got)
		}
	}
}

func TestKeywordCaseInsensitive(t *testing.T) {
	for _, spelling := range []string{"program", "Program", "PROGRAM", "PrOgRaM"} {
		toks := New(spelling).LexAll()
		if toks[0].Kind != KwProgram {
			t.Fatalf("spelling %q: got kind %v, want KwProgram", spelling, toks[0].Kind)
		}
	}
}

func TestNestedBlockComment(t *testing.T) {
	src := "(* a (* b *) c *)"
	toks := New(src).LexAll()
	if len(toks) != 2 { // comment + EOF
		t.Fatalf("expected a single comment token, got %d tokens: %+v", len(toks), toks)
	}
	if toks[0].Kind != BlockComment || toks[0].Text != src {
		t.Fatalf("comment token mismatch: %+v", toks[0])
	}
}

func TestIntegerLiteralSeparatorsAndRadix(t *testing.T) {
	cases := map[string]string{
		"1_000_000": "1_000_000",
		"16#FF":     "16#FF",
		"2#1010":    "2#1010",
		"8#77":      "8#77",
	}
	for src, want := range cases {
		toks := New(src).LexAll()
		if toks[0].Kind != IntLiteral || toks[0].Text != want {
			t.Fatalf("%q: got %+v", src, toks[0])
		}
	}
}

func TestDirectAddresses(t *testing.T) {
	for _, src := range []string{"%IX0.0", "%QW10", "%MD100", "%I*", "%Q*", "%M*"} {
		toks := New(src).LexAll()
		kind := toks[0].Kind
		if kind != DirectAddress && kind != DirectAddressStar {
			t.Fatalf("%q: got kind %v", src, kind)
		}
		if toks[0].Text != src {
			t.Fatalf("%q: token text %q", src, toks[0].Text)
		}
	}
}

func TestTypedLiteralPrefix(t *testing.T) {
	toks := New("TIME#100ms").LexAll()
	if toks[0].Kind != TypedLiteralPrefix || toks[0].Text != "TIME#" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestUnterminatedBlockCommentIsIllegal(t *testing.T) {
	toks := New("(* never closed").LexAll()
	if toks[0].Kind != Illegal {
		t.Fatalf("expected Illegal, got %v", toks[0].Kind)
	}
}
