package dap

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stplatform/st-platform/internal/semantic"
)

// capabilities builds the `initialize` response body: the adapter's
// Capabilities object flattened directly into the body (protocol.rs's
// InitializeResponseBody is `#[serde(flatten)] Capabilities`).
func capabilities() string {
	return newOutMessage().
		set("supportsConfigurationDoneRequest", true).
		set("supportsConditionalBreakpoints", true).
		set("supportsHitConditionalBreakpoints", true).
		set("supportsLogPoints", true).
		set("supportsBreakpointLocationsRequest", true).
		set("supportsSetVariable", true).
		set("supportsSetExpression", true).
		set("supportsEvaluateForHovers", true).
		set("supportsPauseRequest", true).
		set("supportsTerminateRequest", true).
		String()
}

func handleInitialize(a *Adapter, raw string) (string, error) {
	a.initialized = true
	if err := a.sendEvent("initialized", ""); err != nil {
		a.log.Warn("dap: failed sending initialized event")
	}
	return capabilities(), nil
}

// readSources resolves a launch/attach/stReload request's source set
// from disk: either an explicit `files` array, or a single `program`
// path (spec §4.9/SPEC_FULL.md; mirrors cmd/stc/cmd/build.go's
// compileProject file-reading loop, generalized from argv to JSON
// arguments).
func readSources(args gjson.Result) (map[string]string, string, error) {
	var paths []string
	if files := args.Get("files"); files.IsArray() {
		for _, f := range files.Array() {
			paths = append(paths, f.String())
		}
	}
	program := args.Get("program").String()
	if len(paths) == 0 {
		if program == "" {
			return nil, "", fmt.Errorf("launch: no program or files specified")
		}
		paths = []string{program}
	}
	if program == "" {
		program = paths[0]
	}

	sources := map[string]string{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", p, err)
		}
		sources[p] = string(data)
	}
	return sources, program, nil
}

func handleLaunch(a *Adapter, raw string) (string, error) {
	args := requestArguments(raw)
	sources, program, err := readSources(args)
	if err != nil {
		return "", err
	}
	stopOnEntry := args.Get("stopOnEntry").Bool()
	res := a.sess.launch(sources, program, stopOnEntry)
	if res.HasErrors() {
		return "", fmt.Errorf("compilation failed: %s", diagSummary(res.Diags))
	}
	return "", nil
}

func handleAttach(a *Adapter, raw string) (string, error) {
	return handleLaunch(a, raw)
}

func handleDisconnect(a *Adapter, raw string) (string, error) {
	a.sess.terminate()
	a.sendEvent("terminated", "")
	return "", nil
}

func handleTerminate(a *Adapter, raw string) (string, error) {
	a.sess.terminate()
	a.sendEvent("terminated", "")
	return "", nil
}

func handleConfigurationDone(a *Adapter, raw string) (string, error) {
	a.sess.start()
	return "", nil
}

// diagSummary renders every error-severity diagnostic as one
// semicolon-joined line for a response's `message` field.
func diagSummary(diags []semantic.Diagnostic) string {
	var parts []string
	for _, d := range diags {
		if d.Severity != semantic.SeverityError {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%d: %s", d.Range.Start.Line, d.Range.Start.Column, d.Message))
	}
	return strings.Join(parts, "; ")
}
