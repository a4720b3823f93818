package telnet

// Side indicates whether this Interpreter represents a client or server.
// Telnet itself is peer-to-peer — "local and remote" rather than "client and
// server" — but a few option modules (CHARSET in particular, per RFC 2066)
// have distinct behavior for each.
type Side byte

const (
	SideUnknown Side = iota
	SideClient
	SideServer
)

// CharsetUsage indicates when a CHARSET-negotiated character set is actually
// used for text, as opposed to just being advertised.
type CharsetUsage byte

const (
	// CharsetUsageBinary keeps all text in the default charset: a negotiated
	// charset is recorded but never applied, since this engine does not track
	// TRANSMIT-BINARY (the mode RFC 2066 ties a negotiated charset to). Many
	// real MUD clients never negotiate binary mode and expect the charset to
	// apply immediately regardless, which is why CharsetUsageAlways exists.
	CharsetUsageBinary CharsetUsage = iota
	// CharsetUsageAlways applies a negotiated charset to all text the moment
	// CHARSET negotiation completes.
	CharsetUsageAlways
)

// Config controls how an Interpreter is built: which side of the connection
// it represents, which modules it carries, default text encoding, and the
// bounds of its ingress pipeline.
type Config struct {
	// Side indicates whether this Interpreter is a client or server; it is
	// consulted by modules whose behavior depends on it (CHARSET's
	// simultaneous-offer arbitration).
	Side Side

	// DefaultCharsetName is the IANA name of the character set used for all
	// text until CHARSET negotiation (if any) completes. RFC 854 specifies
	// US-ASCII; RFC 5198 moved the modern default to UTF-8. GMCP payloads
	// are decoded and encoded with the same active charset as line text;
	// MSDP strings are carried as raw bytes with no charset conversion.
	DefaultCharsetName string

	// CharsetUsage governs when a negotiated charset actually takes effect.
	CharsetUsage CharsetUsage

	// Modules lists the option modules this Interpreter should install.
	// Each must have a unique Code(); Build returns an error otherwise.
	Modules []Module

	// IngressBufferSize bounds the ingress channel's capacity. A producer
	// blocks once the channel is full, which is the backpressure mechanism
	// described for the ingress pipeline: a slow or absent consumer throttles
	// reads from the network rather than buffering without limit. Zero
	// selects a conservative default.
	IngressBufferSize int

	// MaxBufferSize bounds how many bytes of incoming text Interpret will
	// accumulate between line terminators. A remote that never sends a
	// newline would otherwise grow the line buffer without bound; exceeding
	// this is a fatal session error (ErrLineTooLong), surfaced through Wait,
	// not a recoverable one. Zero selects a 5 MiB default.
	MaxBufferSize int

	// PromptOpCode selects which command SendPrompt emits: GA (the default,
	// zero value selects it too) or EOR, for hosts that have negotiated the
	// End-Of-Record module and prefer it over the legacy Go-Ahead marker.
	PromptOpCode byte

	// Callbacks receives every host-visible event the Interpreter raises.
	Callbacks Callbacks
}

// Callbacks is the single set of optional, nullable-field hooks a host may
// register, replacing a menagerie of individually-typed handler signatures
// with one struct: every field may be left nil, and a nil field is simply
// never invoked.
type Callbacks struct {
	// OnText receives a completed line of incoming text, already decoded
	// using the Interpreter's current charset. ending indicates whether the
	// line was terminated by a newline or flushed early because the remote
	// marked a prompt with IAC GA or IAC EOR.
	OnText func(line string, ending LineEnding)
	// OnCommand receives IAC commands read from the wire, accepted or not,
	// primarily for tracing: WILL/WONT/DO/DONT, GA, EOR, and completed
	// subnegotiations for options with a registered module. NOP, other
	// opcodes, and subnegotiations for unregistered options are not reported.
	OnCommand func(cmd Command)
	// OnModuleEvent receives option-specific events raised by a module via
	// ModuleContext.RaiseEvent (NAWS resize, GMCP message, MSDP update, MSSP
	// record, a CHARSET activation).
	OnModuleEvent func(event any)
	// OnError receives protocol errors (e.g. an implausible subnegotiation
	// length) and errors from the egress writer. The fatal ErrLineTooLong is
	// also reported here, once, before the Interpreter shuts down.
	OnError func(err error)
	// OnTrace receives a human-readable line for every state transition, if
	// set. This is far noisier than OnCommand and is meant for debugging the
	// negotiation engine itself, not the conversation it carries.
	OnTrace func(line string)
}
