package telnet

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// defaultMaxBufferSize is the line-buffer ceiling used when Config.MaxBufferSize
// is left at zero.
const defaultMaxBufferSize = 5 * 1024 * 1024

// Interpreter is the engine that drives one side of a telnet connection: a
// byte-at-a-time state machine for IAC/WILL/WONT/DO/DONT/SB/SE framing, a
// fixed set of installed option Modules, and the bounded ingress/egress
// pipelines that move bytes between the wire and the host's Callbacks.
//
// Telnet is full duplex and does not have a request/response shape: incoming
// text and commands arrive from the Callbacks the host registered in Config,
// and outbound text and commands are queued with Send/SendCommand. Build
// launches the goroutines that keep both directions moving; Dispose and Wait
// tear them down.
type Interpreter struct {
	side    Side
	charset *Charset
	fsm     *StateMachine
	modules *moduleRegistry

	pump    *eventPump
	in      *ingress
	out     *egress
	doneCtx context.Context
	cancel  context.CancelFunc

	lineBuf       []byte
	maxBufferSize int

	// promptOpCode selects what SendPrompt emits: GA or EOR. It starts at
	// Config.PromptOpCode and is then kept in sync with negotiation by the
	// EOR and SUPPRESS-GO-AHEAD modules via ModuleContext.SetPromptOpCode,
	// so it's read from more than one goroutine.
	promptOpCode atomic.Int32

	// fatalMu guards fatalErr, which Wait reports once the ingress consumer
	// exits early because of a fatal session error (currently only a line
	// buffer overflow). Set at most once, by fail.
	fatalMu  sync.Mutex
	fatalErr error
}

// Build constructs an Interpreter for one connection, installs every Module
// in cfg.Modules, and starts the ingress consumer and egress writer
// goroutines. It then sends the WILL/DO requests each module's Usage calls
// for, kicking off negotiation immediately, the same way a freshly created
// connection announces its capabilities before anything else happens.
//
// Build does not read from the connection itself: the host owns that loop
// and feeds incoming bytes in through Interpret/InterpretSlice. This trades
// away the teacher's internal scanning goroutine (which needed a parallel
// timeout-driven scan to stay responsive to context cancellation on a plain
// io.Reader) for the simpler, already-bounded backpressure ingress.go's
// channel provides; the host's own read loop naturally blocks on the same
// Interpret call until the engine catches up.
func Build(ctx context.Context, writer io.Writer, cfg Config) (*Interpreter, error) {
	charset, err := NewCharset(cfg.DefaultCharsetName, cfg.CharsetUsage)
	if err != nil {
		return nil, err
	}

	pump := newEventPump(cfg.Callbacks)
	out := newEgress(writer, charset, pump)

	promptOpCode := cfg.PromptOpCode
	if promptOpCode == 0 {
		promptOpCode = GA
	}

	maxBufferSize := cfg.MaxBufferSize
	if maxBufferSize <= 0 {
		maxBufferSize = defaultMaxBufferSize
	}

	interp := &Interpreter{
		side:          cfg.Side,
		charset:       charset,
		modules:       newModuleRegistry(),
		pump:          pump,
		out:           out,
		in:            newIngress(cfg.IngressBufferSize),
		maxBufferSize: maxBufferSize,
	}
	interp.promptOpCode.Store(int32(promptOpCode))

	interp.fsm = NewStateMachine(StateAccepting)
	interp.configureCoreStates()

	for _, m := range cfg.Modules {
		mod := m
		moduleCtx := &ModuleContext{
			fsm:       interp.fsm,
			send:      out.sendCommand,
			raise:     pump.raiseModule,
			notify:    pump.raiseCommand,
			allocate:  interp.modules.allocateStates,
			debug:     func(format string, args ...any) { pump.raiseTrace(fmt.Sprintf(format, args...)) },
			moduleFor: interp.modules.byCode,
			charset:   charset,
			side:      cfg.Side,
			setPrompt: func(b byte) { interp.promptOpCode.Store(int32(b)) },
			code:      mod.Code(),
		}
		if err := interp.modules.install(mod, moduleCtx); err != nil {
			return nil, err
		}
	}

	interp.modules.wireNegotiation(interp.fsm, interp.onWill, interp.onWont, interp.onDo, interp.onDont)

	if cfg.Callbacks.OnTrace != nil {
		interp.fsm.OnTransition(func(t Transition) {
			pump.raiseTrace(fmt.Sprintf("%s -[%d]-> %s", t.Source, t.Byte, t.Destination))
		})
	}

	doneCtx, cancel := context.WithCancel(ctx)
	interp.doneCtx = doneCtx
	interp.cancel = cancel

	go pump.run(doneCtx)
	go out.run(doneCtx)
	go interp.in.run(doneCtx, interp.step, pump.raiseError)

	interp.requestModules()

	return interp, nil
}

// requestModules sends the initial WILL/DO for every module whose Usage asks
// for proactive negotiation at startup.
func (i *Interpreter) requestModules() {
	for _, m := range i.modules.modules {
		usage := m.Usage()

		if usage&usageOnlyRequestLocal != 0 {
			i.out.sendCommand(Command{OpCode: WILL, Option: m.Code()})
			if m.LocalState() == ModuleInactive {
				if err := m.TransitionLocalState(ModuleRequested); err != nil {
					i.pump.raiseError(err)
				}
			}
		}

		if usage&usageOnlyRequestRemote != 0 {
			i.out.sendCommand(Command{OpCode: DO, Option: m.Code()})
			if m.RemoteState() == ModuleInactive {
				if err := m.TransitionRemoteState(ModuleRequested); err != nil {
					i.pump.raiseError(err)
				}
			}
		}
	}
}

// Interpret pushes one incoming wire byte into the ingress pipeline. It
// blocks under backpressure if the pipeline is full, and returns false if the
// Interpreter has been disposed.
func (i *Interpreter) Interpret(b byte) bool {
	return i.in.push(b)
}

// InterpretSlice pushes a slice of incoming wire bytes in order. It stops and
// returns false as soon as the Interpreter is disposed, which may be partway
// through the slice.
func (i *Interpreter) InterpretSlice(bs []byte) bool {
	for _, b := range bs {
		if !i.in.push(b) {
			return false
		}
	}
	return true
}

// Send queues a line of outbound text, encoded with the Interpreter's active
// charset.
func (i *Interpreter) Send(text string) {
	i.out.sendText(text)
}

// SendCommand queues an outbound IAC command directly. Most callers should
// prefer Send and the negotiation the Interpreter already performs; this
// exists for hosts that need to emit something unusual.
func (i *Interpreter) SendCommand(cmd Command) {
	i.out.sendCommand(cmd)
}

// SendPrompt emits the configured prompt marker (IAC GA by default, or
// whatever Config.PromptOpCode selected) to flag the text sent so far as an
// unterminated prompt rather than a complete line.
func (i *Interpreter) SendPrompt() {
	i.out.sendCommand(Command{OpCode: byte(i.promptOpCode.Load())})
}

// Drain blocks until every byte pushed to Interpret/InterpretSlice before
// this call has been fully processed by the state machine. Callbacks those
// bytes raised are delivered by the event pump goroutine and may still be
// pending when Drain returns. It returns false if the Interpreter was
// disposed before the drain could complete.
func (i *Interpreter) Drain() bool {
	return i.in.drain()
}

// Dispose stops accepting new incoming bytes, cancels the Interpreter's
// internal context, and releases anything blocked in Interpret or Drain.
// Dispose does not block; call Wait afterward to know the egress goroutine
// has actually stopped.
func (i *Interpreter) Dispose() {
	i.in.dispose()
	i.cancel()
}

// Wait blocks until the Interpreter's context is cancelled and the egress
// goroutine has exited, and returns the fatal error that caused shutdown, if
// any (nil for an ordinary Dispose). It does not wait for the event pump or
// ingress consumer goroutines to return.
func (i *Interpreter) Wait() error {
	i.out.wait()
	<-i.doneCtx.Done()

	i.fatalMu.Lock()
	defer i.fatalMu.Unlock()
	return i.fatalErr
}

// fail records err as the session's fatal error (the first one wins),
// reports it to the host once via OnError, and tears the Interpreter down
// exactly as Dispose does. Call this from the ingress consumer goroutine
// only, for conditions §7 classifies as fatal rather than recoverable.
func (i *Interpreter) fail(err error) {
	i.fatalMu.Lock()
	if i.fatalErr == nil {
		i.fatalErr = err
	}
	i.fatalMu.Unlock()

	i.pump.raiseError(err)
	i.in.dispose()
	i.cancel()
}

// Charset returns the Interpreter's charset, for hosts that need to inspect
// or react to which character set is currently negotiated.
func (i *Interpreter) Charset() *Charset {
	return i.charset
}

// Side reports whether this Interpreter represents a client or server.
func (i *Interpreter) Side() Side {
	return i.side
}

// Module looks up an installed module by option code.
func (i *Interpreter) Module(code TelOptCode) (Module, bool) {
	return i.modules.byCode(code)
}

// step fires one byte through the state machine. It is the function the
// ingress consumer goroutine calls for every item it pulls off the channel.
func (i *Interpreter) step(b byte) error {
	return i.fsm.Fire(ByteTrigger(b), b)
}
