package parser

import "testing"

// reassemble rebuilds source text purely from the token stream, proving
// the lossless round-trip property independent of what the grammar
// understood.
func reassemble(toks []tokenText) string {
	s := ""
	for _, t := range toks {
		s += t
	}
	return s
}

type tokenText = string

func TestParseProgramRoundTrip(t *testing.T) {
	src := "PROGRAM Main\n  VAR\n    x : INT;\n  END_VAR\n  x := 1;\n  y := 2;\nEND_PROGRAM\n"
	tree, _ := Parse(src)
	var texts []tokenText
	for _, tok := range tree.Tokens {
		texts = append(texts, tok.Text)
	}
	if got := reassemble(texts); got != src {
		t.Fatalf("round trip mismatch:\nwant %q\ngot  %q", src, got)
	}
	if tree.Text(tree.Root) != src {
		t.Fatalf("tree.Text(root) mismatch:\nwant %q\ngot  %q", src, tree.Text(tree.Root))
	}
}

func TestParseNoFatalDiagnosticsOnValidProgram(t *testing.T) {
	src := `PROGRAM Main
VAR
  x : INT := 0;
  arr : ARRAY[0..3] OF DINT;
END_VAR
IF x > 0 THEN
  x := x + 1;
ELSIF x < 0 THEN
  x := x - 1;
ELSE
  x := 0;
END_IF
FOR x := 0 TO 3 DO
  arr[x] := x;
END_FOR
END_PROGRAM
`
	_, diags := Parse(src)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
}

func TestParseFunctionBlockWithCall(t *testing.T) {
	src := `FUNCTION_BLOCK FB1
VAR_INPUT
  a : INT;
END_VAR
VAR
  result : INT;
END_VAR
result := ABS(a);
END_FUNCTION_BLOCK
`
	_, diags := Parse(src)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
}

func TestErrorRecoveryResyncsToEnd(t *testing.T) {
	src := "PROGRAM Main\n  x := ;\nEND_PROGRAM\n"
	_, diags := Parse(src)
	if len(diags) == 0 {
		t.Fatalf("expected at least one diagnostic for the malformed assignment")
	}
}
