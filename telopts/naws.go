package telopts

import (
	"fmt"
	"sync"

	"github.com/mudtelnet/telnet"
)

// CodeNAWS is the registered option number for Negotiate About Window Size
// (RFC 1073).
const CodeNAWS telnet.TelOptCode = 31

// NAWSEvent is raised via ModuleContext.RaiseEvent whenever a complete
// width/height subnegotiation arrives from the remote.
type NAWSEvent struct {
	Width  int
	Height int
}

// NAWS reports (as a client) and receives (as a server) terminal window
// dimensions. Subnegotiation shape: IAC SB NAWS w_hi w_lo h_hi h_lo IAC SE,
// with any literal 0xFF inside a dimension byte escaped as IAC IAC by the
// shared RegisterSubnegotiation collector.
type NAWS struct {
	BaseModule

	entry telnet.State

	mu                        sync.Mutex
	localWidth, localHeight   int
	remoteWidth, remoteHeight int
	haveLocalSize             bool
}

// RegisterNAWS builds the NAWS module. A server typically passes
// telnet.UsageRequestRemote (send DO NAWS at startup); a client typically
// passes telnet.UsageAllowLocal (accept a DO and then report its size).
func RegisterNAWS(usage telnet.ModuleUsage) *NAWS {
	return &NAWS{BaseModule: NewBaseModule(CodeNAWS, "NAWS", usage)}
}

func (o *NAWS) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *NAWS) onComplete(payload []byte) error {
	if len(payload) != 4 {
		return fmt.Errorf("telopts: naws expected a 4 byte subnegotiation, got %d", len(payload))
	}

	width := int(payload[0])<<8 | int(payload[1])
	height := int(payload[2])<<8 | int(payload[3])

	o.mu.Lock()
	o.remoteWidth, o.remoteHeight = width, height
	o.mu.Unlock()

	o.Context().RaiseEvent(NAWSEvent{Width: width, Height: height})
	return nil
}

func (o *NAWS) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

// TransitionLocalState reports the stored local size as soon as NAWS goes
// active on our side (the only time a NAWS subnegotiation ever flows from
// us to the remote); it does not re-send unprompted on every call, only the
// first time we have a size to give and whenever SetLocalSize changes it.
func (o *NAWS) TransitionLocalState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionLocalState(newState); err != nil {
		return err
	}

	if newState != telnet.ModuleActive {
		return nil
	}

	o.mu.Lock()
	w, h, have := o.localWidth, o.localHeight, o.haveLocalSize
	o.mu.Unlock()

	if have {
		o.writeSize(w, h)
	}
	return nil
}

// SetLocalSize records our own window size and, if NAWS is already active,
// reports it immediately. A host (typically a client reading its pty) calls
// this at startup and again on every resize.
func (o *NAWS) SetLocalSize(width, height int) {
	o.mu.Lock()
	changed := !o.haveLocalSize || o.localWidth != width || o.localHeight != height
	o.localWidth, o.localHeight, o.haveLocalSize = width, height, true
	active := o.LocalState() == telnet.ModuleActive
	o.mu.Unlock()

	if changed && active {
		o.writeSize(width, height)
	}
}

// RemoteSize returns the last size the remote reported.
func (o *NAWS) RemoteSize() (width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remoteWidth, o.remoteHeight
}

func (o *NAWS) writeSize(width, height int) {
	o.Context().SendCommand(telnet.Command{
		OpCode: telnet.SB,
		Option: CodeNAWS,
		Subnegotiation: []byte{
			byte(width >> 8), byte(width),
			byte(height >> 8), byte(height),
		},
	})
}
