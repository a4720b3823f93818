package telopts

import (
	"github.com/mudtelnet/telnet"
	"github.com/mudtelnet/telnet/msdp"
)

// CodeMSDP is the registered option number for the MUD Server Data
// Protocol: structured, typed key/value data framed with the VAR/VAL/
// TABLE/ARRAY marker bytes rather than JSON punctuation.
const CodeMSDP telnet.TelOptCode = 69

// MSDPEvent carries one decoded MSDP message as JSON text (via
// msdp.ToJSON), the shape a GMCP-style host consumer expects regardless of
// which out-of-band channel delivered it.
type MSDPEvent struct {
	JSON string
}

// MSDPModel is the registry of MSDP commands (LIST, REPORT, RESET, SEND,
// UNREPORT) and the variable sets a host exposes through them, named by
// spec.md §6's msdp_model configuration key.
type MSDPModel struct {
	// Reportable lists the variable names a client may REPORT/UNREPORT.
	Reportable []string
	// Sendable lists the variable names a client may SEND (request once,
	// without an ongoing REPORT subscription).
	Sendable []string
	// Lists supplies further lists LIST can enumerate by name. "COMMANDS",
	// "REPORTABLE_VARIABLES" and "SENDABLE_VARIABLES" are answered by the
	// module itself (the latter two from the fields above), so entries under
	// those three names are never read.
	Lists map[string][]string
	// Resolve returns the current value of a reported/sent variable.
	Resolve func(name string) (msdp.Value, bool)
	// OnReport/OnUnreport/OnReset track which variables a client has
	// subscribed to, for a host that pushes updates asynchronously via
	// MSDP.Report.
	OnReport   func(names []string)
	OnUnreport func(names []string)
	OnReset    func(names []string)
}

// MSDP is the thin adapter between the telnet.Module surface and the
// standalone telnet/msdp codec: it hands the codec the raw bytes between
// SB MSDP and IAC SE, converts the decoded tree to JSON for the host
// callback, and implements the LIST/REPORT/RESET/SEND/UNREPORT command
// registry over the codec's tree shape.
type MSDP struct {
	BaseModule

	model MSDPModel
	entry telnet.State
}

// RegisterMSDP builds the MSDP module under the given command/variable
// model.
func RegisterMSDP(usage telnet.ModuleUsage, model MSDPModel) *MSDP {
	return &MSDP{BaseModule: NewBaseModule(CodeMSDP, "MSDP", usage), model: model}
}

func (o *MSDP) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *MSDP) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

func (o *MSDP) onComplete(payload []byte) error {
	table, err := msdp.Decode(payload)
	if err != nil {
		return err
	}

	o.dispatchCommands(table)

	data, err := msdp.ToJSON(table)
	if err != nil {
		return err
	}
	o.Context().RaiseEvent(MSDPEvent{JSON: string(data)})
	return nil
}

// dispatchCommands recognizes the well-known command variables (LIST,
// REPORT, RESET, SEND, UNREPORT) among the decoded top-level VAR/VAL pairs.
// LIST and SEND are answered with a reply on the wire; REPORT, UNREPORT and
// RESET send nothing and only call the model's matching hook, if set.
func (o *MSDP) dispatchCommands(table map[string]msdp.Value) {
	if v, ok := table["LIST"]; ok {
		o.handleList(variableNames(v))
	}
	if v, ok := table["REPORT"]; ok {
		names := variableNames(v)
		if o.model.OnReport != nil {
			o.model.OnReport(names)
		}
	}
	if v, ok := table["UNREPORT"]; ok {
		names := variableNames(v)
		if o.model.OnUnreport != nil {
			o.model.OnUnreport(names)
		}
	}
	if v, ok := table["RESET"]; ok {
		names := variableNames(v)
		if o.model.OnReset != nil {
			o.model.OnReset(names)
		}
	}
	if v, ok := table["SEND"]; ok {
		o.handleSend(variableNames(v))
	}
}

// variableNames normalizes a VAL that may be a bare string or an array of
// strings into a slice, since LIST/REPORT/SEND/UNREPORT all accept either
// shape on the wire.
func variableNames(v msdp.Value) []string {
	if v.Kind == msdp.KindArray {
		names := make([]string, 0, len(v.Array))
		for _, item := range v.Array {
			names = append(names, item.String)
		}
		return names
	}
	return []string{v.String}
}

func (o *MSDP) handleList(names []string) {
	reply := make(map[string]msdp.Value)
	for _, name := range names {
		switch name {
		case "COMMANDS":
			reply[name] = msdp.ArrayValue(stringValues([]string{"LIST", "REPORT", "RESET", "SEND", "UNREPORT"}))
		case "REPORTABLE_VARIABLES":
			reply[name] = msdp.ArrayValue(stringValues(o.model.Reportable))
		case "SENDABLE_VARIABLES":
			reply[name] = msdp.ArrayValue(stringValues(o.model.Sendable))
		default:
			if list, ok := o.model.Lists[name]; ok {
				reply[name] = msdp.ArrayValue(stringValues(list))
			}
		}
	}
	if len(reply) > 0 {
		o.reply(reply)
	}
}

func (o *MSDP) handleSend(names []string) {
	if o.model.Resolve == nil {
		return
	}
	reply := make(map[string]msdp.Value)
	for _, name := range names {
		if value, ok := o.model.Resolve(name); ok {
			reply[name] = value
		}
	}
	if len(reply) > 0 {
		o.reply(reply)
	}
}

func stringValues(names []string) []msdp.Value {
	values := make([]msdp.Value, 0, len(names))
	for _, name := range names {
		values = append(values, msdp.StringValue(name))
	}
	return values
}

func (o *MSDP) reply(table map[string]msdp.Value) {
	o.Context().SendCommand(telnet.Command{
		OpCode:         telnet.SB,
		Option:         CodeMSDP,
		Subnegotiation: msdp.Encode(table),
	})
}

// Report pushes an unsolicited variable update to a client that has an
// active REPORT subscription for it, the asynchronous counterpart to SEND.
func (o *MSDP) Report(name string, value msdp.Value) {
	o.reply(map[string]msdp.Value{name: value})
}

// ReportJSON is Report for a host whose data already lives as JSON (the same
// shape MSDPEvent.JSON delivers incoming messages in) rather than hand-built
// msdp.Value trees: it decodes data as a JSON object via msdp.FromJSON and
// pushes the result the same way Report does.
func (o *MSDP) ReportJSON(data []byte) error {
	table, err := msdp.FromJSON(data)
	if err != nil {
		return err
	}
	o.reply(table)
	return nil
}
