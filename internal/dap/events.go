package dap

import (
	"strings"

	"github.com/stplatform/st-platform/internal/debug"
	"github.com/stplatform/st-platform/internal/runtime/scheduler"
)

// outputEventBody builds an `output` event body (spec §4.9, grounded on
// protocol.rs's OutputEventBody: category + output text).
func outputEventBody(category, output string) string {
	return newOutMessage().set("category", category).set("output", output).String()
}

// stoppedEventBody builds a `stopped` event body from a debug.StopEvent
// (protocol.rs's StoppedEventBody: reason, threadId, allThreadsStopped).
func stoppedEventBody(ev debug.StopEvent) string {
	return newOutMessage().
		set("reason", strings.ToLower(ev.Reason.String())).
		set("threadId", int(ev.Thread)).
		set("allThreadsStopped", ev.Thread == debug.BackgroundThread).
		String()
}

// ioStateEventBody builds the custom `stIoState` event body: one entry
// per %I/%Q/%M global, partitioned by namespace and flagged forced
// (protocol.rs's IoStateEventBody/IoStateEntry).
func ioStateEventBody(snap scheduler.IOSnapshot) string {
	m := newOutMessage()
	addEntry := func(doc, addr, value string, forced bool) string {
		entry := newOutMessage().set("address", addr).set("value", value).set("forced", forced)
		return appendRaw(doc, entry.String())
	}
	inputs, outputs, memory := "[]", "[]", "[]"
	for addr, v := range snap.Values {
		switch classifyIO(addr) {
		case ioInput:
			inputs = addEntry(inputs, addr, v.String(), snap.Forced[addr])
		case ioOutput:
			outputs = addEntry(outputs, addr, v.String(), snap.Forced[addr])
		case ioMemory:
			memory = addEntry(memory, addr, v.String(), snap.Forced[addr])
		}
	}
	m.setRaw("inputs", inputs)
	m.setRaw("outputs", outputs)
	m.setRaw("memory", memory)
	return m.String()
}
