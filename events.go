package telnet

import (
	"context"
	"fmt"
)

// eventKind tags the payload carried by an eventEnvelope, mirroring the
// discriminated-union style used for wire commands rather than one channel
// per callback.
type eventKind byte

const (
	eventText eventKind = iota
	eventCommand
	eventModule
	eventError
	eventTrace
)

type eventEnvelope struct {
	kind       eventKind
	text       string
	lineEnding LineEnding
	command    Command
	module     any
	err        error
	trace      string
}

// eventPump serializes delivery of every Callbacks invocation onto a single
// goroutine, so a host's callback never races against another and never runs
// concurrently with itself. Modules and the kernel only ever hand envelopes
// to the pump; they never call into Callbacks directly.
type eventPump struct {
	events    chan eventEnvelope
	callbacks Callbacks
}

func newEventPump(callbacks Callbacks) *eventPump {
	return &eventPump{
		events:    make(chan eventEnvelope, 32),
		callbacks: callbacks,
	}
}

// deliver invokes the callback for one envelope. A panicking callback is
// recovered and reported through OnError, so it cannot stop the pump.
func (p *eventPump) deliver(ev eventEnvelope) {
	defer func() {
		r := recover()
		if r == nil || ev.kind == eventError || p.callbacks.OnError == nil {
			return
		}
		p.callbacks.OnError(fmt.Errorf("telnet: host callback panicked: %v", r))
	}()

	switch ev.kind {
	case eventText:
		if p.callbacks.OnText != nil {
			p.callbacks.OnText(ev.text, ev.lineEnding)
		}
	case eventCommand:
		if p.callbacks.OnCommand != nil {
			p.callbacks.OnCommand(ev.command)
		}
	case eventModule:
		if p.callbacks.OnModuleEvent != nil {
			p.callbacks.OnModuleEvent(ev.module)
		}
	case eventError:
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(ev.err)
		}
	case eventTrace:
		if p.callbacks.OnTrace != nil {
			p.callbacks.OnTrace(ev.trace)
		}
	}
}

// run drains the pump until ctx is cancelled, then drains whatever was
// already queued before returning, so events raised right before shutdown
// are never silently dropped.
func (p *eventPump) run(ctx context.Context) {
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-ctx.Done():
			close(p.events)
			for ev := range p.events {
				p.deliver(ev)
			}
			return
		}
	}
}

func (p *eventPump) raiseText(line string, ending LineEnding) {
	p.events <- eventEnvelope{kind: eventText, text: line, lineEnding: ending}
}

func (p *eventPump) raiseCommand(cmd Command) {
	p.events <- eventEnvelope{kind: eventCommand, command: cmd}
}

func (p *eventPump) raiseModule(data any) {
	p.events <- eventEnvelope{kind: eventModule, module: data}
}

func (p *eventPump) raiseError(err error) {
	p.events <- eventEnvelope{kind: eventError, err: err}
}

func (p *eventPump) raiseTrace(line string) {
	p.events <- eventEnvelope{kind: eventTrace, trace: line}
}
