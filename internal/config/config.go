// Package config loads a workspace's stproject.yaml: the build target
// and profile, indexing/workspace globs, diagnostics toggles, the
// runtime's watchdog/fault-policy/retain-mode defaults, and the
// evaluate endpoint's builtin allowlist (spec §6 "Project
// Configuration"). Mirrors the teacher's flag-and-default style from
// cmd/dwscript/cmd, generalized to a YAML project file parsed with
// goccy/go-yaml rather than flags alone, since a workspace (unlike a
// single dwscript invocation) needs durable settings.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// BuildProfile names an optimization/debug-info profile for `stc build`.
type BuildProfile string

const (
	ProfileDebug   BuildProfile = "debug"
	ProfileRelease BuildProfile = "release"
)

// FaultPolicy mirrors scheduler.FaultPolicy's two named values, kept as
// a string here so the YAML surface stays human-typed rather than
// coupled to the runtime package's numbering.
type FaultPolicy string

const (
	FaultSafeHalt        FaultPolicy = "safe-halt"
	FaultContinueWithLog FaultPolicy = "continue-with-log"
)

// RetainMode names how retained globals persist across a relaunch
// (spec §1 Non-goals: "no persistence format beyond an opaque retained-
// variable snapshot" — so the only modes are in-memory-only and
// snapshot-file, never a structured store).
type RetainMode string

const (
	RetainNone     RetainMode = "none"
	RetainSnapshot RetainMode = "snapshot"
)

// BuildConfig is the `build:` section.
type BuildConfig struct {
	Target  string       `yaml:"target"`
	Profile BuildProfile `yaml:"profile"`
}

// IndexingConfig is the `indexing:` section: the file globs the IDE
// services index for definition/references/rename.
type IndexingConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DiagnosticsConfig is the `diagnostics:` section: a list of disabled
// diagnostics, the cyclomatic-complexity warning threshold, and two
// warning toggles.
type DiagnosticsConfig struct {
	Disabled             []string `yaml:"disabled"`
	CyclomaticThreshold  int      `yaml:"cyclomatic_threshold"`
	WarnUnusedVariables  bool     `yaml:"warn_unused_variables"`
	WarnMissingCaseElse  bool     `yaml:"warn_missing_case_else"`
}

// RuntimeConfig is the `runtime:` section.
type RuntimeConfig struct {
	WatchdogMillis int         `yaml:"watchdog_millis"`
	FaultPolicy    FaultPolicy `yaml:"fault_policy"`
	RetainMode     RetainMode  `yaml:"retain_mode"`
}

// EvaluateConfig is the `evaluate:` section: the DAP `evaluate`
// request's builtin-call allowlist (spec's Open Question decision,
// recorded in SPEC_FULL.md, default `ABS, SIZEOF, SQRT, TRUNC, ROUND,
// MIN, MAX, LEN, ADR`).
type EvaluateConfig struct {
	AllowedBuiltins []string `yaml:"allowed_builtins"`
}

// FormatterConfig names the vendor profile the (not-yet-built)
// formatter would target; carried here even though formatting itself
// is out of scope, so a project file written against a future
// formatter does not fail to parse.
type FormatterConfig struct {
	VendorProfile string `yaml:"vendor_profile"`
}

// Project is the fully parsed stproject.yaml.
type Project struct {
	Build       BuildConfig       `yaml:"build"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Evaluate    EvaluateConfig    `yaml:"evaluate"`
	Formatter   FormatterConfig   `yaml:"formatter"`
}

// defaultAllowedBuiltins is the evaluate.allowed_builtins default.
var defaultAllowedBuiltins = []string{
	"ABS", "SIZEOF", "SQRT", "TRUNC", "ROUND", "MIN", "MAX", "LEN", "ADR",
}

// Default returns a Project with every documented default applied.
func Default() Project {
	return Project{
		Build: BuildConfig{Target: ".", Profile: ProfileDebug},
		Indexing: IndexingConfig{
			Include: []string{"**/*.st"},
			Exclude: []string{"**/_build/**"},
		},
		Diagnostics: DiagnosticsConfig{
			CyclomaticThreshold: 15,
			WarnUnusedVariables: true,
			WarnMissingCaseElse: true,
		},
		Runtime: RuntimeConfig{
			WatchdogMillis: 0,
			FaultPolicy:    FaultSafeHalt,
			RetainMode:     RetainNone,
		},
		Evaluate: EvaluateConfig{AllowedBuiltins: append([]string(nil), defaultAllowedBuiltins...)},
	}
}

// Load reads and parses path, filling in any field the file omits with
// Default()'s value.
func Load(path string) (Project, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(p.Evaluate.AllowedBuiltins) == 0 {
		p.Evaluate.AllowedBuiltins = append([]string(nil), defaultAllowedBuiltins...)
	}
	return p, nil
}
