package telnet

import "fmt"

// ModuleUsage indicates how a Module is permitted to be used: whether the
// remote may activate it, whether we may activate it locally, and whether we
// proactively request either of those things when an Interpreter starts.
type ModuleUsage byte

const (
	// UsageAllowRemote permits the remote to activate this option; if it
	// sends WILL, we reply DO.
	UsageAllowRemote ModuleUsage = 1 << iota
	usageOnlyRequestRemote
	// UsageAllowLocal permits us to activate this option when the remote
	// asks for it with DO.
	UsageAllowLocal
	usageOnlyRequestLocal
)

const (
	// UsageRequestRemote both allows and proactively requests that the
	// remote activate the option (we send DO at startup).
	UsageRequestRemote ModuleUsage = UsageAllowRemote | usageOnlyRequestRemote
	// UsageRequestLocal both allows and proactively requests that we
	// activate the option locally (we send WILL at startup).
	UsageRequestLocal ModuleUsage = UsageAllowLocal | usageOnlyRequestLocal
)

// ModuleState tracks one side's negotiated activation state for an option.
type ModuleState byte

const (
	ModuleInactive ModuleState = iota
	ModuleRequested
	ModuleActive
)

func (s ModuleState) String() string {
	switch s {
	case ModuleRequested:
		return "Requested"
	case ModuleActive:
		return "Active"
	default:
		return "Inactive"
	}
}

// Module is a single telnet option implementation: NAWS, CHARSET, TTYPE, EOR,
// SUPPRESS-GO-AHEAD, MSSP, GMCP, or MSDP. Exactly one instance exists per
// registered option per Interpreter.
//
// A Module never talks to the wire directly. It is handed a *ModuleContext at
// Install time, which is the one explicit back-reference it holds (per the
// no-cyclic-ownership redesign note) for sending commands, reading/writing
// negotiated state, and raising host-visible events.
type Module interface {
	// Code is this option's registered number (NAWS=31, CHARSET=42, ...).
	Code() TelOptCode
	// Name is the short identifier used in tracing output.
	Name() string
	// Usage describes how this option may be activated.
	Usage() ModuleUsage

	// Install is called once, before negotiation begins, with the context
	// this module should retain for the life of the Interpreter.
	Install(ctx *ModuleContext)

	// LocalState/RemoteState report this module's current activation.
	LocalState() ModuleState
	RemoteState() ModuleState

	// TransitionLocalState is invoked when a DO/DONT changes our local
	// activation. It is not invoked for a repeated transition to the same
	// state, nor for the implicit Inactive state at startup.
	TransitionLocalState(newState ModuleState) error
	// TransitionRemoteState is the remote-side equivalent, driven by
	// WILL/WONT.
	TransitionRemoteState(newState ModuleState) error

	// Subnegotiate is part of the module surface but the kernel never calls
	// it: a module receives its collected payloads through the onComplete
	// function it passes to ModuleContext.RegisterSubnegotiation.
	Subnegotiate(payload []byte) error

	// SubnegotiationEntry returns the state that should receive control from
	// StateSubNegotiation once this module's option code identifies it as the
	// owner of an incoming subnegotiation, and whether this module has one at
	// all — EOR and SUPPRESS-GO-AHEAD are boolean-only options negotiated
	// purely through WILL/WONT/DO/DONT and never register a payload state.
	SubnegotiationEntry() (entry State, ok bool)
}

// ModuleContext is the handle a Module uses to act on the Interpreter that
// owns it: sending commands, and raising events for the host to observe.
// It exists so modules never hold a reference to *Interpreter directly,
// keeping the ownership graph a tree instead of a cycle.
type ModuleContext struct {
	fsm       *StateMachine
	send      func(Command)
	raise     func(event any)
	notify    func(Command)
	allocate  func(count int) State
	debug     func(format string, args ...any)
	moduleFor func(TelOptCode) (Module, bool)
	charset   *Charset
	side      Side
	setPrompt func(byte)
	code      TelOptCode
}

// SendCommand queues an outbound IAC command.
func (c *ModuleContext) SendCommand(cmd Command) { c.send(cmd) }

// RaiseEvent hands an option-specific event to the host's callback pump
// (e.g. a NAWS size-changed event, a GMCP message, an MSDP update).
func (c *ModuleContext) RaiseEvent(event any) { c.raise(event) }

// NotifyCommand reports a fully-decoded incoming command to Callbacks.OnCommand.
// RegisterSubnegotiation calls this itself once a subnegotiation payload is
// complete; the core WILL/WONT/DO/DONT handlers call it directly since they
// don't go through a module-specific entry point.
func (c *ModuleContext) NotifyCommand(cmd Command) { c.notify(cmd) }

// Charset returns the Interpreter's shared charset, for modules (CHARSET
// itself, and anything else that cares what encoding text is currently
// carried in) that need to read or switch it.
func (c *ModuleContext) Charset() *Charset { return c.charset }

// Side reports whether the owning Interpreter is a client or server, for
// modules whose behavior differs by role (CHARSET's simultaneous-offer
// arbitration).
func (c *ModuleContext) Side() Side { return c.side }

// SetPromptOpCode changes which command SendPrompt emits (GA or EOR). EOR
// and SUPPRESS-GO-AHEAD both call this as their negotiated state changes,
// per spec.md §4.3: "A prompt send then emits <payload> IAC EOR" once EOR
// is active, falling back to GA otherwise.
func (c *ModuleContext) SetPromptOpCode(opCode byte) { c.setPrompt(opCode) }

// AllocateStates reserves a contiguous block of module-private states above
// the core negotiation states, for modules that need more than the generic
// collecting/escaped pair RegisterSubnegotiation allocates.
func (c *ModuleContext) AllocateStates(count int) State { return c.allocate(count) }

// Debugf routes a trace line through the Interpreter's diagnostic logger.
func (c *ModuleContext) Debugf(format string, args ...any) { c.debug(format, args...) }

// ModuleByCode looks up another registered module by option code, for the
// rare case where one module's behavior depends on another's state (MSSP
// payload building does not need this, but it's available).
func (c *ModuleContext) ModuleByCode(code TelOptCode) (Module, bool) { return c.moduleFor(code) }

// RegisterSubnegotiation installs the generic states a module needs to
// collect an arbitrary-length subnegotiation payload terminated by IAC SE,
// correctly unescaping a doubled IAC: a "collecting" state that appends bytes
// and loops on itself by default, an "escaped" state that has just seen an
// IAC while collecting and decides between a literal 0xFF (append, go back to
// collecting), the terminator (IAC SE: hand the accumulated payload to
// onComplete), or a desync (treat the byte as literal and keep draining,
// never locking up); and a private "complete" state that runs onComplete
// exactly once per subnegotiation before falling back to Accepting.
//
// Only "collecting" and "escaped" are returned; callers return "collecting"
// from SubnegotiationEntry and never need to reference "complete" directly.
func (c *ModuleContext) RegisterSubnegotiation(onComplete func(payload []byte) error) (collecting, escaped State) {
	collecting = c.AllocateStates(3)
	escaped = collecting + 1
	complete := collecting + 2

	var buf []byte

	c.fsm.Configure(collecting).
		OnEntry(func(t Transition) error {
			// The first entry into collecting comes from the module's own
			// SubNegotiation state and carries the option code byte, not
			// payload data. Every later entry comes from collecting's own
			// default self-loop or from escaped unescaping a literal 0xFF,
			// and those bytes belong in the payload.
			if t.Source == collecting || t.Source == escaped {
				buf = append(buf, t.Byte)
			}
			return nil
		}).
		Permit(ByteTrigger(IAC), escaped).
		PermitDefault(collecting)

	c.fsm.Configure(escaped).
		Permit(ByteTrigger(IAC), collecting).
		Permit(ByteTrigger(SE), complete).
		PermitDefault(collecting)

	c.fsm.Configure(complete).
		OnEntry(func(t Transition) error {
			payload := buf
			buf = nil
			c.notify(Command{OpCode: SB, Option: c.code, Subnegotiation: payload})
			return onComplete(payload)
		}).
		PermitImmediate(StateAccepting)

	return collecting, escaped
}

// moduleRegistry owns every installed Module for one Interpreter, allocates
// module-private state numbers, and wires the safe-negotiation permits for
// the modules into the core state machine. Subnegotiation payloads do not
// pass through it; each module's RegisterSubnegotiation states deliver them.
type moduleRegistry struct {
	modules  map[TelOptCode]Module
	nextFree State
}

func newModuleRegistry() *moduleRegistry {
	return &moduleRegistry{
		modules:  make(map[TelOptCode]Module),
		nextFree: coreStateCeiling,
	}
}

func (r *moduleRegistry) install(m Module, ctx *ModuleContext) error {
	if _, exists := r.modules[m.Code()]; exists {
		return fmt.Errorf("%w: option code %d (name %q collides with %q)", ErrModuleCollision, m.Code(), m.Name(), r.modules[m.Code()].Name())
	}
	r.modules[m.Code()] = m
	m.Install(ctx)
	return nil
}

func (r *moduleRegistry) allocateStates(count int) State {
	first := r.nextFree
	r.nextFree += State(count)
	return first
}

func (r *moduleRegistry) byCode(code TelOptCode) (Module, bool) {
	m, ok := r.modules[code]
	return m, ok
}

func (r *moduleRegistry) optionName(code TelOptCode) (string, bool) {
	m, ok := r.modules[code]
	if !ok {
		return "", false
	}
	return m.Name(), true
}

// wireNegotiation installs, for each registered module, the explicit permits
// that let the four negotiation-verb states (Willing/Refusing/Do/Dont) route
// a recognized option code to its module instead of falling through to the
// safe-refusal Bad* default. Unrecognized codes are handled purely by the
// PermitDefault edges those states already carry — there is nothing to add
// for them, which is exactly the point: the automaton stays total without
// ever enumerating what it doesn't know.
//
// A state's OnEntry list runs for every transition that lands on it, from any
// source and on any trigger, so each module needs its own private landing
// state per verb rather than sharing StateWilling/StateRefusing/StateDo/
// StateDont's — otherwise every registered module's handler would fire on
// any WILL/WONT/DO/DONT, not just the one naming its own option code. The
// landing states fall straight back through to Accepting, the same
// immediate-then-done shape the Bad* safety states use.
func (r *moduleRegistry) wireNegotiation(m *StateMachine, onWill, onWont, onDo, onDont func(Module) EntryAction) {
	for code, module := range r.modules {
		trigger := ByteTrigger(byte(code))

		willState := r.allocateStates(1)
		m.Configure(willState).OnEntry(onWill(module)).PermitImmediate(StateAccepting)
		m.Configure(StateWilling).Permit(trigger, willState)

		wontState := r.allocateStates(1)
		m.Configure(wontState).OnEntry(onWont(module)).PermitImmediate(StateAccepting)
		m.Configure(StateRefusing).Permit(trigger, wontState)

		doState := r.allocateStates(1)
		m.Configure(doState).OnEntry(onDo(module)).PermitImmediate(StateAccepting)
		m.Configure(StateDo).Permit(trigger, doState)

		dontState := r.allocateStates(1)
		m.Configure(dontState).OnEntry(onDont(module)).PermitImmediate(StateAccepting)
		m.Configure(StateDont).Permit(trigger, dontState)

		if entry, ok := module.SubnegotiationEntry(); ok {
			m.Configure(StateSubNegotiation).Permit(trigger, entry)
		}
	}
}
