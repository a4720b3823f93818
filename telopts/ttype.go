package telopts

import (
	"errors"
	"sync"

	"github.com/mudtelnet/telnet"
)

// CodeTTYPE is the registered option number for RFC 1091 terminal type
// negotiation (extended by the MTTS convention of cycling through several
// names terminated by a repeat).
const CodeTTYPE telnet.TelOptCode = 24

const (
	ttypeIS byte = iota
	ttypeSend
)

// TTYPEEvent is raised once the remote's terminal-type cycle closes (the
// same name reported twice in a row).
type TTYPEEvent struct {
	Names []string
}

// TTYPE implements the server-requests/client-reports terminal type
// exchange: the server repeatedly sends SB TTYPE SEND, and the client
// replies with SB TTYPE IS <name> for each entry in its local list,
// cycling back to the last entry forever once exhausted. The server
// recognizes the cycle is complete when the same name repeats.
type TTYPE struct {
	BaseModule

	entry telnet.State

	localMu    sync.Mutex
	localNames []string
	cursor     int

	remoteMu    sync.Mutex
	remoteNames []string
}

// RegisterTTYPE builds the TTYPE module. localNames is the ordered list
// this side reports when acting as the client; it may be replaced later
// with SetLocalNames before negotiation completes.
func RegisterTTYPE(usage telnet.ModuleUsage, localNames []string) *TTYPE {
	return &TTYPE{
		BaseModule: NewBaseModule(CodeTTYPE, "TTYPE", usage),
		localNames: localNames,
	}
}

func (o *TTYPE) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *TTYPE) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

// TransitionRemoteState kicks off the SEND/IS cycle the instant the remote
// activates TTYPE on its side, whether or not we asked for it ourselves.
func (o *TTYPE) TransitionRemoteState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionRemoteState(newState); err != nil {
		return err
	}

	if newState == telnet.ModuleInactive {
		o.remoteMu.Lock()
		o.remoteNames = nil
		o.remoteMu.Unlock()
		return nil
	}

	if newState == telnet.ModuleActive {
		o.writeSend()
	}
	return nil
}

func (o *TTYPE) TransitionLocalState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionLocalState(newState); err != nil {
		return err
	}
	if newState == telnet.ModuleInactive {
		o.localMu.Lock()
		o.cursor = 0
		o.localMu.Unlock()
	}
	return nil
}

func (o *TTYPE) writeSend() {
	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeTTYPE, Subnegotiation: []byte{ttypeSend}})
}

func (o *TTYPE) writeName(name string) {
	sub := append([]byte{ttypeIS}, []byte(name)...)
	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeTTYPE, Subnegotiation: sub})
}

func (o *TTYPE) onComplete(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("telopts: ttype received an empty subnegotiation")
	}

	switch payload[0] {
	case ttypeSend:
		return o.onSend()
	case ttypeIS:
		return o.onIs(string(payload[1:]))
	default:
		return nil
	}
}

// onSend answers a SEND with the next name in our local cycle, repeating
// the last name forever once exhausted so a server that keeps asking
// eventually sees the same answer twice and stops.
func (o *TTYPE) onSend() error {
	o.localMu.Lock()
	defer o.localMu.Unlock()

	if len(o.localNames) == 0 {
		o.writeName("UNKNOWN")
		return nil
	}

	if o.cursor >= len(o.localNames) {
		o.writeName(o.localNames[len(o.localNames)-1])
		return nil
	}

	o.writeName(o.localNames[o.cursor])
	o.cursor++
	return nil
}

// onIs records a reported name and, unless it repeats the previous one,
// asks for another; a repeat closes the cycle and raises TTYPEEvent.
func (o *TTYPE) onIs(name string) error {
	o.remoteMu.Lock()
	closed := len(o.remoteNames) > 0 && o.remoteNames[len(o.remoteNames)-1] == name
	o.remoteNames = append(o.remoteNames, name)
	names := append([]string(nil), o.remoteNames...)
	o.remoteMu.Unlock()

	if closed {
		o.Context().RaiseEvent(TTYPEEvent{Names: names})
		return nil
	}

	o.writeSend()
	return nil
}

// RemoteNames returns the terminal-type names reported so far, in
// discovery order.
func (o *TTYPE) RemoteNames() []string {
	o.remoteMu.Lock()
	defer o.remoteMu.Unlock()
	return append([]string(nil), o.remoteNames...)
}

// SetLocalNames replaces the local cycle before negotiation starts.
func (o *TTYPE) SetLocalNames(names []string) {
	o.localMu.Lock()
	defer o.localMu.Unlock()
	o.localNames = names
	o.cursor = 0
}
