// Package dap implements §4.9/§6/§8. See protocol.go's package doc for
// the framing/envelope rationale.
package dap

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/stplatform/st-platform/internal/config"
)

// handlerFunc processes one request's raw envelope and returns the raw
// body to embed in the response (possibly "", for a bodyless ack), or
// an error whose message becomes the response's `message` field and
// whose presence sets success=false.
type handlerFunc func(a *Adapter, raw string) (body string, err error)

// commands is the full DAP + custom command surface this adapter
// understands (spec §4.9's command list plus the stIo*/stVar*/stReload
// custom commands).
var commands = map[string]handlerFunc{
	"initialize":          handleInitialize,
	"launch":              handleLaunch,
	"attach":               handleAttach,
	"disconnect":           handleDisconnect,
	"terminate":            handleTerminate,
	"configurationDone":    handleConfigurationDone,
	"setBreakpoints":       handleSetBreakpoints,
	"breakpointLocations":  handleBreakpointLocations,
	"threads":              handleThreads,
	"stackTrace":           handleStackTrace,
	"scopes":               handleScopes,
	"variables":            handleVariables,
	"setVariable":          handleSetVariable,
	"setExpression":        handleSetExpression,
	"evaluate":             handleEvaluate,
	"continue":             handleContinue,
	"pause":                handlePause,
	"next":                 handleNext,
	"stepIn":               handleStepIn,
	"stepOut":              handleStepOut,
	"stIoState":            handleStIoState,
	"stIoWrite":            handleStIoWrite,
	"stVarState":           handleStVarState,
	"stVarWrite":           handleStVarWrite,
	"stReload":             handleStReload,
}

// Adapter drives one stdio DAP connection: it owns the session, the
// outbound sequence counter, and the goroutine that forwards
// session.outbox events to the client interleaved with request
// responses (spec §4.9 "Events may interleave with responses on the
// same output stream; seq is a single shared counter").
type Adapter struct {
	log  *zap.Logger
	sess *session

	seq int64

	writeMu sync.Mutex
	w       io.Writer

	initialized bool
}

// NewAdapter builds an Adapter over cfg, ready to Serve a connection.
func NewAdapter(log *zap.Logger, cfg config.Project) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{log: log, sess: newSession(log, cfg)}
}

func (a *Adapter) nextSeq() int { return int(atomic.AddInt64(&a.seq, 1)) }

// sendRaw writes a fully-formed envelope (seq already stamped) to the
// client, serializing concurrent writers (the event-forwarding
// goroutine and the request loop both call this).
func (a *Adapter) sendRaw(envelope string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return writeMessage(a.w, envelope)
}

// sendEvent stamps seq and sends one event built by newEvent's body.
func (a *Adapter) sendEvent(event, bodyRaw string) error {
	return a.sendRaw(stampSeq(newEvent(0, event, bodyRaw), a.nextSeq()))
}

// stampSeq rewrites an envelope's seq field, used since event bodies
// built deep in session/control callbacks cannot call nextSeq
// themselves without a reference to the Adapter.
func stampSeq(envelope string, seq int) string {
	out, _ := setSeq(envelope, seq)
	return out
}

// Serve reads framed requests from r and writes framed responses/events
// to w until r is exhausted or a fatal framing error occurs. It starts
// one background goroutine to forward the session's event outbox.
func (a *Adapter) Serve(r io.Reader, w io.Writer) error {
	a.w = w
	done := make(chan struct{})
	defer close(done)
	go a.forwardEvents(done)

	br := bufio.NewReader(r)
	for {
		raw, err := readMessage(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		a.handle(raw)
	}
}

func (a *Adapter) forwardEvents(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case raw := <-a.sess.outbox:
			if err := a.sendRaw(stampSeq(raw, a.nextSeq())); err != nil {
				a.log.Warn("dap: failed forwarding event", zap.Error(err))
			}
		}
	}
}

// handle dispatches one request envelope to its handler and writes the
// response. An unknown command is answered with success=false rather
// than dropped, so a client never waits forever on a reply.
func (a *Adapter) handle(raw string) {
	cmd := requestCommand(raw)
	seq := requestSeq(raw)

	h, ok := commands[cmd]
	if !ok {
		a.respond(seq, cmd, "", fmt.Errorf("unsupported command %q", cmd))
		return
	}
	body, err := h(a, raw)
	a.respond(seq, cmd, body, err)
}

func (a *Adapter) respond(requestSeq int, command, body string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	envelope := newResponse(a.nextSeq(), requestSeq, command, err == nil, msg, body)
	if werr := a.sendRaw(envelope); werr != nil {
		a.log.Warn("dap: failed writing response", zap.Error(werr))
	}
}
