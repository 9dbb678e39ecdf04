package symbols

import (
	"testing"

	"github.com/stplatform/st-platform/internal/parser"
)

func buildTable(t *testing.T, src string) (*Table, ScopeId) {
	t.Helper()
	tree, diags := parser.Parse(src)
	if len(diags) != 0 {
		t.Fatalf("unexpected parse diagnostics: %+v", diags)
	}
	table := NewTable()
	NewBuilder(table).BuildFile("test.st", tree)
	return table, table.Root
}

func TestDeclareProgramAndLocals(t *testing.T) {
	src := "PROGRAM Main\nVAR\n  x : INT;\n  y, z : DINT;\nEND_VAR\nx := 1;\nEND_PROGRAM\n"
	table, root := buildTable(t, src)

	progId, ok := table.LookupLocal(root, "Main")
	if !ok {
		t.Fatal("expected Main to be declared at root scope")
	}
	prog := table.Sym(progId)
	if prog.Kind != KindProgram {
		t.Fatalf("expected KindProgram, got %v", prog.Kind)
	}

	bodyScope := prog.NamespaceScope
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := table.LookupLocal(bodyScope, name); !ok {
			t.Fatalf("expected %s to be declared in Main's body scope", name)
		}
	}

	// case-insensitive lookup
	if _, ok := table.LookupLocal(bodyScope, "X"); !ok {
		t.Fatal("expected case-insensitive lookup of X to find x")
	}
}

func TestFunctionBlockInputOutputParams(t *testing.T) {
	src := `FUNCTION_BLOCK FB1
VAR_INPUT
  a : INT;
END_VAR
VAR_OUTPUT
  b : INT;
END_VAR
b := a;
END_FUNCTION_BLOCK
`
	table, root := buildTable(t, src)
	fbId, _ := table.LookupLocal(root, "FB1")
	fb := table.Sym(fbId)
	scope := fb.NamespaceScope

	aId, _ := table.LookupLocal(scope, "a")
	a := table.Sym(aId)
	if a.Kind != KindParameter || a.ParamDir != ParamIn {
		t.Fatalf("expected a to be an input parameter, got %+v", a)
	}

	bId, _ := table.LookupLocal(scope, "b")
	b := table.Sym(bId)
	if b.Kind != KindParameter || b.ParamDir != ParamOut {
		t.Fatalf("expected b to be an output parameter, got %+v", b)
	}
}

func TestNamespaceNestingAndUsingResolution(t *testing.T) {
	src := `NAMESPACE Acme.Motors
FUNCTION_BLOCK Conveyor
VAR
  speed : INT;
END_VAR
END_FUNCTION_BLOCK
END_NAMESPACE
USING Acme.Motors
PROGRAM Main
END_PROGRAM
`
	table, root := buildTable(t, src)

	acmeId, ok := table.LookupLocal(root, "Acme")
	if !ok || table.Sym(acmeId).Kind != KindNamespace {
		t.Fatal("expected Acme namespace at root scope")
	}
	motorsId, ok := table.LookupLocal(table.Sym(acmeId).NamespaceScope, "Motors")
	if !ok || table.Sym(motorsId).Kind != KindNamespace {
		t.Fatal("expected Motors namespace nested under Acme")
	}
	motorsScope := table.Sym(motorsId).NamespaceScope
	convId, ok := table.LookupLocal(motorsScope, "Conveyor")
	if !ok || table.Sym(convId).Kind != KindFunctionBlock {
		t.Fatal("expected Conveyor function block nested under Acme.Motors")
	}

	mainId, _ := table.LookupLocal(root, "Main")
	mainScope := table.Sym(mainId).NamespaceScope

	resolved, err := table.Resolve(mainScope, "Conveyor")
	if err != nil {
		t.Fatalf("expected Conveyor to resolve via USING Acme.Motors, got error: %v", err)
	}
	if resolved != convId {
		t.Fatalf("resolved wrong symbol: got %d want %d", resolved, convId)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	src := `NAMESPACE A
FUNCTION_BLOCK Widget
END_FUNCTION_BLOCK
END_NAMESPACE
NAMESPACE B
FUNCTION_BLOCK Widget
END_FUNCTION_BLOCK
END_NAMESPACE
USING A
USING B
PROGRAM Main
END_PROGRAM
`
	table, root := buildTable(t, src)
	mainId, _ := table.LookupLocal(root, "Main")
	mainScope := table.Sym(mainId).NamespaceScope

	_, err := table.Resolve(mainScope, "Widget")
	if err == nil {
		t.Fatal("expected ambiguous resolution error for Widget")
	}
	re, ok := err.(*ResolutionError)
	if !ok || !re.Ambiguous {
		t.Fatalf("expected an ambiguous ResolutionError, got %v (%T)", err, err)
	}
}

func TestResolveNotFound(t *testing.T) {
	src := "PROGRAM Main\nEND_PROGRAM\n"
	table, root := buildTable(t, src)
	mainId, _ := table.LookupLocal(root, "Main")
	mainScope := table.Sym(mainId).NamespaceScope

	_, err := table.Resolve(mainScope, "DoesNotExist")
	if err == nil {
		t.Fatal("expected a not-found resolution error")
	}
	if re := err.(*ResolutionError); re.Ambiguous {
		t.Fatal("expected a plain not-found error, not ambiguous")
	}
}

func TestTypeDeclCollection(t *testing.T) {
	src := `TYPE
  MyInt : INT;
  Point : STRUCT
    x : INT;
    y : INT;
  END_STRUCT;
END_TYPE
PROGRAM Main
END_PROGRAM
`
	table, root := buildTable(t, src)
	if _, ok := table.LookupLocal(root, "MyInt"); !ok {
		t.Fatal("expected MyInt type alias to be declared")
	}
	if _, ok := table.LookupLocal(root, "Point"); !ok {
		t.Fatal("expected Point struct type to be declared")
	}
}

func TestConfigurationResourceTaskProgram(t *testing.T) {
	src := `PROGRAM Main
END_PROGRAM
CONFIGURATION Config0
RESOURCE Res0 ON PLC
TASK FastTask (INTERVAL := T#10ms, PRIORITY := 1);
PROGRAM Inst WITH FastTask : Main;
END_RESOURCE
END_CONFIGURATION
`
	table, root := buildTable(t, src)
	cfgId, ok := table.LookupLocal(root, "Config0")
	if !ok || table.Sym(cfgId).Kind != KindConfiguration {
		t.Fatal("expected Config0 configuration")
	}
	resScope := table.Sym(cfgId).NamespaceScope
	resId, ok := table.LookupLocal(resScope, "Res0")
	if !ok || table.Sym(resId).Kind != KindResource {
		t.Fatal("expected Res0 resource nested under Config0")
	}
	taskScope := table.Sym(resId).NamespaceScope
	if _, ok := table.LookupLocal(taskScope, "FastTask"); !ok {
		t.Fatal("expected FastTask task declared under Res0")
	}
	if _, ok := table.LookupLocal(taskScope, "Inst"); !ok {
		t.Fatal("expected Inst program instance declared under Res0")
	}
}
