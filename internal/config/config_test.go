package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stproject.yaml")
	if err := os.WriteFile(path, []byte("build:\n  target: cmd/plc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Build.Target != "cmd/plc" {
		t.Fatalf("expected build.target override, got %q", p.Build.Target)
	}
	if p.Runtime.FaultPolicy != FaultSafeHalt {
		t.Fatalf("expected default fault policy, got %q", p.Runtime.FaultPolicy)
	}
	if len(p.Evaluate.AllowedBuiltins) == 0 {
		t.Fatalf("expected default allowed builtins to be filled in")
	}
}

func TestLoadOverridesAllowedBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stproject.yaml")
	content := "evaluate:\n  allowed_builtins:\n    - ABS\n    - SQRT\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Evaluate.AllowedBuiltins) != 2 {
		t.Fatalf("expected override to stick, got %v", p.Evaluate.AllowedBuiltins)
	}
}
