package dap

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/config"
)

const sampleProgram = `PROGRAM Main
VAR
  count : INT;
END_VAR
count := count + 1;
END_PROGRAM

CONFIGURATION Cfg
  PROGRAM Inst : Main;
END_CONFIGURATION
`

// testSession drives one Adapter over an in-process pair of pipes, the
// same framed stdio contract Serve uses over a real process's stdin/
// stdout.
type testSession struct {
	t     *testing.T
	reqW  io.WriteCloser
	respR *bufio.Reader
	seq   int
}

func newTestSession(t *testing.T) (*testSession, func()) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	a := NewAdapter(zap.NewNop(), config.Default())
	done := make(chan struct{})
	go func() {
		a.Serve(reqR, respW)
		close(done)
	}()

	cleanup := func() {
		reqW.Close()
		respW.Close()
		<-done
	}
	return &testSession{t: t, reqW: reqW, respR: bufio.NewReader(respR)}, cleanup
}

func (s *testSession) send(command string, args string) int {
	s.t.Helper()
	s.seq++
	body := newOutMessage().set("seq", s.seq).set("type", typeRequest).set("command", command)
	if args != "" {
		body.setRaw("arguments", args)
	}
	if err := writeMessage(s.reqW, body.String()); err != nil {
		s.t.Fatalf("send %s: %v", command, err)
	}
	return s.seq
}

func (s *testSession) recv() gjson.Result {
	s.t.Helper()
	raw, err := readMessage(s.respR)
	if err != nil {
		s.t.Fatalf("recv: %v", err)
	}
	return gjson.Parse(raw)
}

// recvResponse drains messages (discarding events) until the response
// to command arrives.
func (s *testSession) recvResponse(command string) gjson.Result {
	s.t.Helper()
	for i := 0; i < 50; i++ {
		v := s.recv()
		if v.Get("type").String() == "response" && v.Get("command").String() == command {
			return v
		}
	}
	s.t.Fatalf("no response for %s after 50 messages", command)
	return gjson.Result{}
}

// recvEvent drains messages (discarding responses and other events)
// until event arrives.
func (s *testSession) recvEvent(event string) gjson.Result {
	s.t.Helper()
	for i := 0; i < 200; i++ {
		v := s.recv()
		if v.Get("type").String() == "event" && v.Get("event").String() == event {
			return v
		}
	}
	s.t.Fatalf("no %s event after 200 messages", event)
	return gjson.Result{}
}

func writeSampleProgram(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.st")
	if err := os.WriteFile(path, []byte(sampleProgram), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	s, cleanup := newTestSession(t)
	defer cleanup()

	s.send("initialize", `{"adapterID":"st-platform-test"}`)
	ev := s.recvEvent("initialized")
	if ev.Get("seq").Int() == 0 {
		t.Fatalf("expected a nonzero seq on the initialized event: %s", ev.Raw)
	}

	resp := s.recvResponse("initialize")
	if !resp.Get("success").Bool() {
		t.Fatalf("initialize failed: %s", resp.Raw)
	}
	if !resp.Get("body.supportsSetVariable").Bool() {
		t.Fatalf("expected supportsSetVariable, got %s", resp.Raw)
	}
	if !resp.Get("body.supportsConditionalBreakpoints").Bool() {
		t.Fatalf("expected supportsConditionalBreakpoints, got %s", resp.Raw)
	}
}

func TestUnknownCommandFailsGracefully(t *testing.T) {
	s, cleanup := newTestSession(t)
	defer cleanup()

	s.send("notACommand", "")
	resp := s.recvResponse("notACommand")
	if resp.Get("success").Bool() {
		t.Fatalf("expected success=false for an unsupported command")
	}
	if resp.Get("message").String() == "" {
		t.Fatalf("expected a message explaining the failure")
	}
}

// TestFullDebugSession drives initialize -> launch -> setBreakpoints ->
// configurationDone -> (breakpoint stop) -> evaluate -> continue ->
// disconnect, exercising the scheduler, debug.Control, and the
// variables-reference paging end to end.
func TestFullDebugSession(t *testing.T) {
	path := writeSampleProgram(t)

	s, cleanup := newTestSession(t)
	defer cleanup()

	s.send("initialize", `{}`)
	s.recvEvent("initialized")
	s.recvResponse("initialize")

	launchArgs := `{"program":` + jsonString(path) + `}`
	s.send("launch", launchArgs)
	launchResp := s.recvResponse("launch")
	if !launchResp.Get("success").Bool() {
		t.Fatalf("launch failed: %s", launchResp.Raw)
	}

	// "count := count + 1;" is on line 5, column 1.
	bpArgs := `{"source":{"path":` + jsonString(path) + `},"breakpoints":[{"line":5,"column":1}]}`
	s.send("setBreakpoints", bpArgs)
	bpResp := s.recvResponse("setBreakpoints")
	if !bpResp.Get("success").Bool() {
		t.Fatalf("setBreakpoints failed: %s", bpResp.Raw)
	}
	bps := bpResp.Get("body.breakpoints").Array()
	if len(bps) != 1 || !bps[0].Get("verified").Bool() {
		t.Fatalf("expected one verified breakpoint, got %s", bpResp.Raw)
	}

	s.send("configurationDone", "")
	cdResp := s.recvResponse("configurationDone")
	if !cdResp.Get("success").Bool() {
		t.Fatalf("configurationDone failed: %s", cdResp.Raw)
	}

	stopped := s.recvEvent("stopped")
	if stopped.Get("body.reason").String() != "breakpoint" {
		t.Fatalf("expected a breakpoint stop, got %s", stopped.Raw)
	}
	threadID := int(stopped.Get("body.threadId").Int())

	s.send("evaluate", `{"expression":"count"}`)
	evalResp := s.recvResponse("evaluate")
	if !evalResp.Get("success").Bool() {
		t.Fatalf("evaluate failed: %s", evalResp.Raw)
	}
	if evalResp.Get("body.result").String() != "0" {
		t.Fatalf("expected count == 0 before the breakpointed statement runs, got %s", evalResp.Raw)
	}

	threadsArgs := `{"threadId":` + strconv.Itoa(threadID) + `}`
	s.send("stackTrace", threadsArgs)
	stResp := s.recvResponse("stackTrace")
	frames := stResp.Get("body.stackFrames").Array()
	if len(frames) == 0 {
		t.Fatalf("expected at least one stack frame while paused, got %s", stResp.Raw)
	}

	s.send("continue", "")
	contResp := s.recvResponse("continue")
	if !contResp.Get("success").Bool() {
		t.Fatalf("continue failed: %s", contResp.Raw)
	}

	s.send("disconnect", "")
	discResp := s.recvResponse("disconnect")
	if !discResp.Get("success").Bool() {
		t.Fatalf("disconnect failed: %s", discResp.Raw)
	}
	s.recvEvent("terminated")
}

const accessProgram = `PROGRAM Main
VAR
  count : INT;
END_VAR
count := count + 1;
END_PROGRAM

CONFIGURATION Cfg
  VAR_ACCESS
    CountAccess : Inst.count : INT READ_ONLY;
  END_VAR
  PROGRAM Inst : Main;
END_CONFIGURATION
`

// TestSetExpressionRejectsReadOnlyVarAccess exercises SPEC_FULL.md §4's
// VAR_ACCESS enforcement: a setExpression write to a name declared
// READ_ONLY in a VAR_ACCESS block comes back as a failed response, not
// a silently dropped write.
func TestSetExpressionRejectsReadOnlyVarAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.st")
	if err := os.WriteFile(path, []byte(accessProgram), 0o644); err != nil {
		t.Fatal(err)
	}

	s, cleanup := newTestSession(t)
	defer cleanup()

	s.send("initialize", `{}`)
	s.recvEvent("initialized")
	s.recvResponse("initialize")

	s.send("launch", `{"program":`+jsonString(path)+`}`)
	launchResp := s.recvResponse("launch")
	if !launchResp.Get("success").Bool() {
		t.Fatalf("launch failed: %s", launchResp.Raw)
	}

	s.send("configurationDone", "")
	s.recvResponse("configurationDone")

	s.send("setExpression", `{"expression":"CountAccess","value":"5"}`)
	resp := s.recvResponse("setExpression")
	if resp.Get("success").Bool() {
		t.Fatalf("expected setExpression on a READ_ONLY VAR_ACCESS path to fail, got %s", resp.Raw)
	}
}

// jsonString renders s as a JSON-quoted string literal, for splicing a
// file path into a hand-built request body.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
