// Package dap is the Debug Adapter Protocol bridge: stdio Content-Length
// framing, a command dispatch table, breakpoint resolution against the
// shared CST/symbol index, lazy variables_reference paging, and the
// custom stIoState/stIoWrite/stVarState/stVarWrite/stReload commands
// (spec.md §4.9). Mirrors the teacher's flat, one-file-per-concern
// package layout, substituting DWScript's absent debug surface for the
// mutex+condvar debug.Control core this spec requires. Request/response
// bodies are built and read with gjson/sjson rather than one generated
// struct per DAP command (spec's domain-stack choice, SPEC_FULL.md §2),
// since the command surface is large and most handlers only ever touch
// a handful of fields of their arguments.
package dap

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// messageType values for the "type" envelope field (spec §4.9: Request/
// Response/Event envelope shape).
const (
	typeRequest  = "request"
	typeResponse = "response"
	typeEvent    = "event"
)

// outMessage accumulates one outbound envelope (response or event) as a
// JSON document built incrementally with sjson, avoiding a dedicated Go
// struct per DAP command body.
type outMessage struct {
	doc string
}

func newOutMessage() *outMessage { return &outMessage{doc: "{}"} }

func (m *outMessage) set(path string, v any) *outMessage {
	m.doc, _ = sjson.Set(m.doc, path, v)
	return m
}

// setRaw splices in raw (already-encoded) JSON at path, for nested
// bodies assembled by a sub-builder.
func (m *outMessage) setRaw(path, raw string) *outMessage {
	m.doc, _ = sjson.SetRaw(m.doc, path, raw)
	return m
}

func (m *outMessage) String() string { return m.doc }

// newResponse builds a DAP response envelope: seq, type, request_seq,
// success, command, and an optional message/body (spec §4.9 "Response{
// seq, type:'response', request_seq, success, command, message?,
// body?}"; "request_seq is serialized as request_seq").
func newResponse(seq, requestSeq int, command string, success bool, message string, bodyRaw string) string {
	m := newOutMessage().
		set("seq", seq).
		set("type", typeResponse).
		set("request_seq", requestSeq).
		set("success", success).
		set("command", command)
	if message != "" {
		m.set("message", message)
	}
	if bodyRaw != "" {
		m.setRaw("body", bodyRaw)
	}
	return m.String()
}

// newEvent builds a DAP event envelope: seq, type, event, optional body.
func newEvent(seq int, event string, bodyRaw string) string {
	m := newOutMessage().set("seq", seq).set("type", typeEvent).set("event", event)
	if bodyRaw != "" {
		m.setRaw("body", bodyRaw)
	}
	return m.String()
}

// requestSeq reads a request envelope's seq field, tolerating the
// requestSeq alias some clients send for what the wire otherwise calls
// request_seq (spec §4.9).
func requestSeq(raw string) int {
	if v := gjson.Get(raw, "seq"); v.Exists() {
		return int(v.Int())
	}
	return int(gjson.Get(raw, "requestSeq").Int())
}

func requestCommand(raw string) string { return gjson.Get(raw, "command").String() }

func requestArguments(raw string) gjson.Result { return gjson.Get(raw, "arguments") }

// appendRaw appends raw (an already-encoded JSON value) to arr, a JSON
// array document, using sjson's "-1" append index.
func appendRaw(arr, raw string) string {
	out, _ := sjson.SetRaw(arr, "-1", raw)
	return out
}

// setSeq rewrites an envelope's seq field in place.
func setSeq(envelope string, seq int) (string, error) {
	return sjson.Set(envelope, "seq", seq)
}
