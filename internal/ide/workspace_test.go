package ide

import "testing"

const sampleSrc = `PROGRAM Main
VAR
  counter : INT;
  limit : INT;
END_VAR
counter := counter + 1;
IF counter > limit THEN
  counter := 0;
END_IF
END_PROGRAM
`

func TestDiagnosticsCleanForFullyUsedProgram(t *testing.T) {
	w := NewWorkspace()
	w.SetFile("main.st", sampleSrc)
	w.Refresh()
	diags := w.Diagnostics("main.st")
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics for a fully used program, got %+v", diags)
	}
}

func TestHoverResolvesLocal(t *testing.T) {
	w := NewWorkspace()
	w.SetFile("main.st", sampleSrc)
	w.Refresh()

	offset := indexOf(sampleSrc, "counter + 1") + 1
	h := w.HoverAt("main.st", offset)
	if !h.Found || h.Name != "counter" {
		t.Fatalf("expected hover to resolve counter, got %+v", h)
	}
}

func TestReferencesFindsEveryUse(t *testing.T) {
	w := NewWorkspace()
	w.SetFile("main.st", sampleSrc)
	w.Refresh()

	offset := indexOf(sampleSrc, "counter :") + 1
	refs := w.References("main.st", offset)
	if len(refs) < 3 {
		t.Fatalf("expected at least 3 occurrences (decl + 2 uses), got %d: %+v", len(refs), refs)
	}
}

func TestRenameProducesEditForEveryReference(t *testing.T) {
	w := NewWorkspace()
	w.SetFile("main.st", sampleSrc)
	w.Refresh()

	offset := indexOf(sampleSrc, "limit :") + 1
	refs := w.References("main.st", offset)
	edits := w.Rename("main.st", offset, "maxCount")
	if len(edits) != len(refs) {
		t.Fatalf("expected one edit per reference, got %d edits for %d refs", len(edits), len(refs))
	}
	for _, e := range edits {
		if e.NewText != "maxCount" {
			t.Fatalf("expected NewText maxCount, got %q", e.NewText)
		}
	}
}

func TestCompletionListsLocalsByPrefix(t *testing.T) {
	w := NewWorkspace()
	w.SetFile("main.st", sampleSrc)
	w.Refresh()

	offset := indexOf(sampleSrc, "counter := 0")
	items := w.CompletionAt("main.st", offset, "cou")
	found := false
	for _, it := range items {
		if it.Name == "counter" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected completion to include counter, got %+v", items)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
