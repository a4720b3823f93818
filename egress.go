package telnet

import (
	"context"
	"errors"
	"io"
	"net"
)

type egressItem struct {
	command   Command
	isCommand bool
	text      string
}

// egress is the single outbound writer for an Interpreter: exactly one
// goroutine ever touches the underlying io.Writer, so commands and text
// queued from any number of caller goroutines always reach the wire in the
// order they were sent, never interleaved mid-write.
type egress struct {
	writer  io.Writer
	charset *Charset
	items   chan egressItem
	pump    *eventPump
	done    chan struct{}
}

func newEgress(writer io.Writer, charset *Charset, pump *eventPump) *egress {
	return &egress{
		writer:  writer,
		charset: charset,
		items:   make(chan egressItem, 64),
		pump:    pump,
		done:    make(chan struct{}),
	}
}

func (e *egress) sendCommand(c Command) {
	e.items <- egressItem{command: c, isCommand: true}
}

func (e *egress) sendText(text string) {
	e.items <- egressItem{text: text}
}

func (e *egress) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case item := <-e.items:
			var err error
			if item.isCommand {
				err = e.writeCommand(item.command)
			} else {
				err = e.writeText(item.text)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				e.pump.raiseError(err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// wait blocks until the egress goroutine has stopped.
func (e *egress) wait() {
	<-e.done
}

func (e *egress) writeOutput(b []byte) error {
	for {
		_, err := e.writer.Write(b)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Temporary() {
			continue
		}
		return err
	}
}

// writeCommand serializes a Command to wire bytes, doubling any literal 0xFF
// that appears inside a subnegotiation payload so the receiver's IAC-escape
// handling can tell it apart from a real IAC.
func (e *egress) writeCommand(c Command) error {
	e.pump.raiseTrace("sent " + commandString(c, nil))

	b := make([]byte, 0, len(c.Subnegotiation)+6)
	b = append(b, IAC, c.OpCode)

	if c.OpCode == GA || c.OpCode == NOP || c.OpCode == EOR {
		return e.writeOutput(b)
	}

	b = append(b, byte(c.Option))

	if c.OpCode != SB {
		return e.writeOutput(b)
	}

	for _, sb := range c.Subnegotiation {
		b = append(b, sb)
		if sb == IAC {
			b = append(b, IAC)
		}
	}
	b = append(b, IAC, SE)

	return e.writeOutput(b)
}

// writeText encodes text with the Interpreter's active charset and doubles
// any literal 0xFF in the result, the same escaping writeCommand applies to
// subnegotiation payloads: a single-byte charset such as ISO-8859-1 can map
// an ordinary character to 0xFF, and an unescaped 0xFF on the wire reads as
// the start of an IAC sequence.
func (e *egress) writeText(text string) error {
	encoded, err := e.charset.Encode(text)
	if err != nil {
		return err
	}

	b := make([]byte, 0, len(encoded))
	for _, by := range encoded {
		b = append(b, by)
		if by == IAC {
			b = append(b, IAC)
		}
	}
	return e.writeOutput(b)
}
