package telopts

import (
	"strconv"

	"github.com/mudtelnet/telnet"
	"github.com/mudtelnet/telnet/msdp"
)

// CodeMSSP is the registered option number for the MUD Server Status
// Protocol. MSSP reuses MSDP's VAR/VAL byte codes (1/2) for its flatter,
// single-level key/value (or key/value-list) wire shape.
const CodeMSSP telnet.TelOptCode = 70

// MSSPValue is one reported value: a list-valued key repeats MSSP_VAL once
// per element, a bool serializes as "1"/"0", everything else as its text.
type MSSPValue struct {
	Strings []string
	Int     *int
	Bool    *bool
}

// MSSPString wraps a single string as an MSSPValue.
func MSSPString(s string) MSSPValue { return MSSPValue{Strings: []string{s}} }

// MSSPInt wraps an int as an MSSPValue.
func MSSPInt(n int) MSSPValue { return MSSPValue{Int: &n} }

// MSSPBool wraps a bool as an MSSPValue.
func MSSPBool(b bool) MSSPValue { return MSSPValue{Bool: &b} }

// MSSPList wraps a list of strings as an MSSPValue, emitted as repeated
// MSSP_VAL entries under the same MSSP_VAR name.
func MSSPList(ss ...string) MSSPValue { return MSSPValue{Strings: ss} }

func (v MSSPValue) values() []string {
	switch {
	case v.Bool != nil:
		if *v.Bool {
			return []string{"1"}
		}
		return []string{"0"}
	case v.Int != nil:
		return []string{strconv.Itoa(*v.Int)}
	default:
		return v.Strings
	}
}

// MSSPRecord is the documented set of well-known MSSP keys (all optional)
// plus an open-ended Extended map for anything else a host wants to
// report. Known keys are emitted first, extended keys after, matching
// spec.md §4.3's "unknown/extended keys ... emitted after known keys".
type MSSPRecord struct {
	Name     string
	Players  *int
	Uptime   *int
	Codebase string
	Port     *int

	Extended map[string]MSSPValue
}

func (r *MSSPRecord) fields() []struct {
	key   string
	value MSSPValue
} {
	var fields []struct {
		key   string
		value MSSPValue
	}
	add := func(key string, value MSSPValue) {
		fields = append(fields, struct {
			key   string
			value MSSPValue
		}{key, value})
	}

	if r.Name != "" {
		add("NAME", MSSPString(r.Name))
	}
	if r.Players != nil {
		add("PLAYERS", MSSPInt(*r.Players))
	}
	if r.Uptime != nil {
		add("UPTIME", MSSPInt(*r.Uptime))
	}
	if r.Codebase != "" {
		add("CODEBASE", MSSPString(r.Codebase))
	}
	if r.Port != nil {
		add("PORT", MSSPInt(*r.Port))
	}
	for key, value := range r.Extended {
		add(key, value)
	}
	return fields
}

// MSSPConfig supplies the payload a server reports on each MSSP request.
// Refresh is called fresh on every request so a host can report live
// player counts rather than a static snapshot, grounded on the way
// GoTinyMUSH's oob package builds its MSSP payload from live server state
// at request time.
type MSSPConfig struct {
	Refresh func() (*MSSPRecord, error)
}

// MSSP implements server-status reporting: a crawler (or client) requests
// it with an empty IAC SB MSSP IAC SE, and the server answers with every
// configured variable as alternating MSSP_VAR/MSSP_VAL pairs.
type MSSP struct {
	BaseModule

	config MSSPConfig
	entry  telnet.State
}

// RegisterMSSP builds the MSSP module. Only a server-side Interpreter
// should install one with a non-nil config; a client only ever needs
// UsageAllowLocal so it can recognize and ignore the negotiation.
func RegisterMSSP(usage telnet.ModuleUsage, config MSSPConfig) *MSSP {
	return &MSSP{BaseModule: NewBaseModule(CodeMSSP, "MSSP", usage), config: config}
}

func (o *MSSP) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *MSSP) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

// onComplete ignores the (always empty) request payload and dumps the
// current MSSP record, since MSSP has exactly one request shape.
func (o *MSSP) onComplete(_ []byte) error {
	if o.config.Refresh == nil {
		return nil
	}

	record, err := o.config.Refresh()
	if err != nil || record == nil {
		return err
	}

	o.Context().SendCommand(telnet.Command{
		OpCode:         telnet.SB,
		Option:         CodeMSSP,
		Subnegotiation: encodeMSSP(record),
	})
	o.Context().RaiseEvent(*record)
	return nil
}

func encodeMSSP(record *MSSPRecord) []byte {
	var buf []byte
	for _, field := range record.fields() {
		for _, value := range field.value.values() {
			buf = append(buf, msdp.Var)
			buf = append(buf, field.key...)
			buf = append(buf, msdp.Val)
			buf = append(buf, value...)
		}
	}
	return buf
}
