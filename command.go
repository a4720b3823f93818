package telnet

import (
	"strconv"
	"strings"
)

// Telnet opcodes
const (
	// EOR - End Of Record. These days IAC EOR is primarily used as an alternative
	// to IAC GA that can indicate where a prompt is without GA's historical baggage.
	EOR byte = 239
	// SE - Subnegotiation End. IAC SE marks the end of a subnegotiation command.
	SE byte = 240
	// NOP - No-Op. IAC NOP doesn't indicate anything at all, and this engine ignores it.
	NOP byte = 241
	// GA - Go Ahead. Historically used for half-duplex terminals; MUDs commonly repurpose
	// it (or EOR) to mark the end of a prompt line.
	GA byte = 249
	// SB - Subnegotiation Begin. IAC SB starts a telopt-specific payload.
	SB byte = 250
	// WILL - this side intends to activate a telopt.
	WILL byte = 251
	// WONT - this side refuses to activate a telopt.
	WONT byte = 252
	// DO - request that the remote activate a telopt.
	DO byte = 253
	// DONT - demand that the remote not activate a telopt.
	DONT byte = 254
	// IAC - Interpret As Command. Begins a new command, or doubles to escape a literal 0xFF.
	IAC byte = 255
)

var commandCodes = map[byte]string{
	EOR:  "EOR",
	SE:   "SE",
	NOP:  "NOP",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

// TelOptCode identifies a single negotiated telnet option. Each option module
// registers under its own unique code (NAWS=31, CHARSET=42, MSSP=70, GMCP=201, ...).
type TelOptCode byte

// Command is a fully decoded IAC command, either received from or about to be
// sent to the remote peer.
type Command struct {
	OpCode         byte
	Option         TelOptCode
	Subnegotiation []byte
}

// IsActivateNegotiation returns true for DO/WILL, the two opcodes that ask for
// a telopt to be turned on (as opposed to DONT/WONT, which turn one off).
func (c Command) IsActivateNegotiation() bool {
	return c.OpCode == DO || c.OpCode == WILL
}

// IsLocalNegotiation returns true for DO/DONT, the two opcodes that govern
// whether this side is permitted to activate a telopt (as opposed to WILL/WONT,
// which govern the remote side).
func (c Command) IsLocalNegotiation() bool {
	return c.OpCode == DO || c.OpCode == DONT
}

// Reject returns the polite refusal for this negotiation command: WONT for a DO,
// DONT for a WILL. Any other opcode has no refusal and returns a NOP.
func (c Command) Reject() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WONT
	case WILL:
		newOpCode = DONT
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// Accept returns the acceptance for this negotiation command: WILL for a DO,
// DO for a WILL. Any other opcode has no acceptance and returns a NOP.
func (c Command) Accept() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WILL
	case WILL:
		newOpCode = DO
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// commandString renders a Command in the "IAC OPCODE OPTION ..." form used for
// tracing and debug logging, resolving the option name through the registry if
// one is available.
func commandString(c Command, optionName func(TelOptCode) (string, bool)) string {
	var sb strings.Builder
	sb.WriteString("IAC ")

	opCode, hasOpCode := commandCodes[c.OpCode]
	if !hasOpCode {
		opCode = strconv.Itoa(int(c.OpCode))
	}
	sb.WriteString(opCode)

	if c.OpCode == GA || c.OpCode == NOP || c.OpCode == EOR {
		return sb.String()
	}

	sb.WriteByte(' ')

	var name string
	var hasName bool
	if optionName != nil {
		name, hasName = optionName(c.Option)
	}
	if !hasName {
		sb.WriteString("? Unknown Option ")
		sb.WriteString(strconv.Itoa(int(c.Option)))
		sb.WriteString("?")
	} else {
		sb.WriteString(name)
	}

	if c.OpCode != SB {
		return sb.String()
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Quote(string(c.Subnegotiation)))
	sb.WriteString(" IAC SE")
	return sb.String()
}
