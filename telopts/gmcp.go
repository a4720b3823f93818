package telopts

import (
	"bytes"
	"fmt"

	"github.com/mudtelnet/telnet"
)

// CodeGMCP is the registered option number for the Generic MUD
// Communication Protocol: out-of-band JSON messages tagged with a dotted
// package name.
const CodeGMCP telnet.TelOptCode = 201

// GMCPEvent carries one decoded GMCP message: the dotted package name and
// the raw JSON payload text, decoded with the Interpreter's current text
// encoding but never parsed by the engine itself.
type GMCPEvent struct {
	Package string
	Payload string
}

// GMCP is a pure pass-through framing: IAC SB GMCP <package> <space>
// <json> IAC SE. The engine never inspects the JSON; Send packages a host's
// own JSON-producing code for outbound delivery.
type GMCP struct {
	BaseModule
	entry telnet.State
}

// RegisterGMCP builds the GMCP module.
func RegisterGMCP(usage telnet.ModuleUsage) *GMCP {
	return &GMCP{BaseModule: NewBaseModule(CodeGMCP, "GMCP", usage)}
}

func (o *GMCP) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *GMCP) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

func (o *GMCP) onComplete(payload []byte) error {
	idx := bytes.IndexByte(payload, ' ')
	var pkg string
	var jsonPayload []byte
	if idx < 0 {
		pkg = string(payload)
	} else {
		pkg = string(payload[:idx])
		jsonPayload = payload[idx+1:]
	}

	text, err := o.Context().Charset().DecodeAll(jsonPayload)
	if err != nil {
		return fmt.Errorf("telopts: gmcp payload decode: %w", err)
	}

	o.Context().RaiseEvent(GMCPEvent{Package: pkg, Payload: text})
	return nil
}

// Send encodes and transmits one GMCP message, package name followed by a
// single space and the raw JSON payload text (already-serialized by the
// caller — GMCP itself carries opaque JSON, not a typed message).
func (o *GMCP) Send(pkg, jsonPayload string) error {
	encoded, err := o.Context().Charset().Encode(jsonPayload)
	if err != nil {
		return err
	}

	sub := make([]byte, 0, len(pkg)+1+len(encoded))
	sub = append(sub, pkg...)
	sub = append(sub, ' ')
	sub = append(sub, encoded...)

	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeGMCP, Subnegotiation: sub})
	return nil
}
