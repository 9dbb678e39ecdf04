package semantic

import (
	"testing"

	"github.com/stplatform/st-platform/internal/parser"
)

func analyzeSrc(t *testing.T, src string) []Diagnostic {
	t.Helper()
	tree, diags := parser.Parse(src)
	if len(diags) != 0 {
		t.Fatalf("unexpected parse diagnostics: %+v", diags)
	}
	a := NewAnalyzer()
	a.AddFile("test.st", tree)
	return a.Analyze()
}

func hasCode(diags []Diagnostic, code Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestIncompatibleAssignmentDetected(t *testing.T) {
	src := `PROGRAM Main
VAR
  b : BOOL;
  x : INT;
END_VAR
b := x;
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeIncompatibleAssignment) {
		t.Fatalf("expected CodeIncompatibleAssignment, got %+v", diags)
	}
}

func TestWideningAssignmentIsClean(t *testing.T) {
	src := `PROGRAM Main
VAR
  x : INT;
  y : DINT;
END_VAR
y := x;
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if hasCode(diags, CodeIncompatibleAssignment) {
		t.Fatalf("did not expect CodeIncompatibleAssignment, got %+v", diags)
	}
}

func TestUnreachableCodeAfterReturn(t *testing.T) {
	src := `FUNCTION F : INT
VAR
  x : INT;
END_VAR
RETURN x;
x := 1;
END_FUNCTION
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeUnreachableCode) {
		t.Fatalf("expected CodeUnreachableCode, got %+v", diags)
	}
}

func TestUnusedVariableWarning(t *testing.T) {
	src := `PROGRAM Main
VAR
  unused : INT;
END_VAR
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeUnusedVariable) {
		t.Fatalf("expected CodeUnusedVariable, got %+v", diags)
	}
}

func TestCaseWithoutElseWarning(t *testing.T) {
	src := `PROGRAM Main
VAR
  x : INT;
END_VAR
CASE x OF
  1: x := 1;
  2: x := 2;
END_CASE
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeCaseWithoutElse) {
		t.Fatalf("expected CodeCaseWithoutElse, got %+v", diags)
	}
}

func TestConditionNotBooleanError(t *testing.T) {
	src := `PROGRAM Main
VAR
  x : INT;
END_VAR
IF x THEN
  x := 1;
END_IF
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeConditionNotBoolean) {
		t.Fatalf("expected CodeConditionNotBoolean, got %+v", diags)
	}
}

func TestSubrangeOutOfBoundsLiteral(t *testing.T) {
	src := `TYPE
  Percent : INT(0..100);
END_TYPE
PROGRAM Main
VAR
  p : Percent;
END_VAR
p := 150;
END_PROGRAM
`
	diags := analyzeSrc(t, src)
	if !hasCode(diags, CodeSubrangeOutOfBounds) {
		t.Fatalf("expected CodeSubrangeOutOfBounds, got %+v", diags)
	}
}
