package telnet

const (
	lf byte = '\n'
	cr byte = '\r'
)

// configureCoreStates wires every core negotiation state: idle/accumulating
// text, the negotiation-verb dispatch, and the safe-refusal Bad* states that
// let an unrecognized option code fall through without ever desyncing the
// automaton. Module-specific permits are layered on top of this afterward by
// moduleRegistry.wireNegotiation.
func (i *Interpreter) configureCoreStates() {
	fsm := i.fsm

	fsm.Configure(StateAccepting).
		PermitByte(IAC, StateStartNegotiation).
		PermitByte(lf, StateAct).
		PermitByte(cr, StateAccepting).
		PermitDefault(StateReadingCharacters)

	fsm.Configure(StateReadingCharacters).
		OnEntry(i.appendLineByte).
		PermitByte(IAC, StateStartNegotiation).
		PermitByte(lf, StateAct).
		PermitByte(cr, StateReadingCharacters).
		PermitDefault(StateReadingCharacters)

	fsm.Configure(StateAct).
		OnEntry(i.flushLine(LineEndingNewline)).
		PermitImmediate(StateAccepting)

	fsm.Configure(StateActGoAhead).
		OnEntry(func(t Transition) error { i.pump.raiseCommand(Command{OpCode: GA}); return nil }).
		OnEntry(i.flushLine(LineEndingGoAhead)).
		PermitImmediate(StateAccepting)

	fsm.Configure(StateActEOR).
		OnEntry(func(t Transition) error { i.pump.raiseCommand(Command{OpCode: EOR}); return nil }).
		OnEntry(i.flushLine(LineEndingEOR)).
		PermitImmediate(StateAccepting)

	fsm.Configure(StateStartNegotiation).
		PermitByte(WILL, StateWilling).
		PermitByte(WONT, StateRefusing).
		PermitByte(DO, StateDo).
		PermitByte(DONT, StateDont).
		PermitByte(SB, StateSubNegotiation).
		PermitByte(GA, StateActGoAhead).
		PermitByte(EOR, StateActEOR).
		PermitByte(NOP, StateAccepting).
		// A doubled IAC is a literal 0xFF data byte, not a command.
		PermitByte(IAC, StateReadingCharacters).
		// Any other opcode is noise from a peer speaking an extension we
		// don't implement; drop it and resume without raising an error.
		PermitDefault(StateAccepting)

	fsm.Configure(StateWilling).PermitDefault(StateBadWilling)
	fsm.Configure(StateRefusing).PermitDefault(StateBadRefusing)
	fsm.Configure(StateDo).PermitDefault(StateBadDo)
	fsm.Configure(StateDont).PermitDefault(StateBadDont)
	fsm.Configure(StateSubNegotiation).PermitDefault(StateBadSubNegotiation)

	fsm.Configure(StateBadWilling).
		OnEntry(i.receivedUnknown(WILL)).
		OnEntry(i.refuse(DONT)).
		PermitImmediate(StateAccepting)
	fsm.Configure(StateBadDo).
		OnEntry(i.receivedUnknown(DO)).
		OnEntry(i.refuse(WONT)).
		PermitImmediate(StateAccepting)
	// WONT/DONT never require a reply: acknowledging a refusal with another
	// refusal is how negotiation loops happen.
	fsm.Configure(StateBadRefusing).
		OnEntry(i.receivedUnknown(WONT)).
		PermitImmediate(StateAccepting)
	fsm.Configure(StateBadDont).
		OnEntry(i.receivedUnknown(DONT)).
		PermitImmediate(StateAccepting)

	fsm.Configure(StateBadSubNegotiation).
		PermitByte(IAC, StateBadSubNegotiationIAC).
		PermitDefault(StateBadSubNegotiation)

	fsm.Configure(StateBadSubNegotiationIAC).
		PermitByte(IAC, StateBadSubNegotiation).
		PermitByte(SE, StateAccepting).
		PermitDefault(StateBadSubNegotiation)
}

func (i *Interpreter) appendLineByte(t Transition) error {
	if t.Byte == cr {
		return nil
	}
	if len(i.lineBuf) >= i.maxBufferSize {
		i.lineBuf = nil
		i.fail(ErrLineTooLong)
		return nil
	}
	i.lineBuf = append(i.lineBuf, t.Byte)
	return nil
}

func (i *Interpreter) flushLine(ending LineEnding) EntryAction {
	return func(t Transition) error {
		return i.emitLine(ending)
	}
}

func (i *Interpreter) emitLine(ending LineEnding) error {
	text, err := i.charset.DecodeAll(i.lineBuf)
	i.lineBuf = i.lineBuf[:0]
	if err != nil {
		return err
	}
	i.pump.raiseText(text, ending)
	return nil
}

// refuse returns an on-entry action that politely declines an unrecognized
// option with the given opcode (WONT for a DO we can't satisfy, DONT for a
// WILL we won't allow), reconstructing the option code from the byte that
// drove this transition.
func (i *Interpreter) refuse(opCode byte) EntryAction {
	return func(t Transition) error {
		i.out.sendCommand(Command{OpCode: opCode, Option: TelOptCode(t.Byte)})
		return nil
	}
}

// receivedUnknown reports an incoming negotiation command for an option with
// no registered module to Callbacks.OnCommand, the "accepted or not" half of
// its contract — a registered option's WILL/WONT/DO/DONT is reported by
// onWill/onWont/onDo/onDont instead.
func (i *Interpreter) receivedUnknown(opCode byte) EntryAction {
	return func(t Transition) error {
		i.pump.raiseCommand(Command{OpCode: opCode, Option: TelOptCode(t.Byte)})
		return nil
	}
}

// onWill handles an incoming WILL <code> for a recognized module: the remote
// announcing it wants to (or already did) activate the option on its side.
func (i *Interpreter) onWill(m Module) EntryAction {
	return func(t Transition) error {
		i.pump.raiseCommand(Command{OpCode: WILL, Option: m.Code()})

		old := m.RemoteState()
		if old == ModuleActive {
			return nil
		}

		if m.Usage()&UsageAllowRemote != 0 {
			if err := m.TransitionRemoteState(ModuleActive); err != nil {
				return err
			}
			if old == ModuleInactive {
				i.out.sendCommand(Command{OpCode: DO, Option: m.Code()})
			}
			return nil
		}

		i.out.sendCommand(Command{OpCode: DONT, Option: m.Code()})
		return nil
	}
}

// onWont handles an incoming WONT <code>: the remote deactivating an option
// on its side. No reply is required or sent.
func (i *Interpreter) onWont(m Module) EntryAction {
	return func(t Transition) error {
		i.pump.raiseCommand(Command{OpCode: WONT, Option: m.Code()})

		if m.RemoteState() == ModuleInactive {
			return nil
		}
		return m.TransitionRemoteState(ModuleInactive)
	}
}

// onDo handles an incoming DO <code>: the remote asking us to activate an
// option locally (either unprompted, or confirming a WILL we sent ourselves).
func (i *Interpreter) onDo(m Module) EntryAction {
	return func(t Transition) error {
		i.pump.raiseCommand(Command{OpCode: DO, Option: m.Code()})

		old := m.LocalState()
		if old == ModuleActive {
			return nil
		}

		if m.Usage()&UsageAllowLocal != 0 {
			if err := m.TransitionLocalState(ModuleActive); err != nil {
				return err
			}
			if old == ModuleInactive {
				i.out.sendCommand(Command{OpCode: WILL, Option: m.Code()})
			}
			return nil
		}

		i.out.sendCommand(Command{OpCode: WONT, Option: m.Code()})
		return nil
	}
}

// onDont handles an incoming DONT <code>: the remote telling us to
// deactivate an option locally. No reply is required or sent.
func (i *Interpreter) onDont(m Module) EntryAction {
	return func(t Transition) error {
		i.pump.raiseCommand(Command{OpCode: DONT, Option: m.Code()})

		if m.LocalState() == ModuleInactive {
			return nil
		}
		return m.TransitionLocalState(ModuleInactive)
	}
}
