package telnet

import "strconv"

// State names every node in the negotiation automaton. The core negotiation
// states occupy a small reserved block starting at zero; every option module
// reserves its own block of states above coreStateCeiling via
// ModuleContext.AllocateStates, so there is never a runtime registry or
// reflection involved in deciding what a state number means — it's a fixed,
// compile-time-assigned table.
type State int

const (
	// StateAccepting is the idle state: nothing has been read yet for the
	// current line, and no command is in progress.
	StateAccepting State = iota
	// StateReadingCharacters accumulates bytes into the line buffer.
	StateReadingCharacters
	// StateAct fires when a line-ending byte is seen: its on-entry action
	// submits the accumulated line buffer to the host and resets it, then
	// immediately falls back through to StateAccepting.
	StateAct
	// StateStartNegotiation is entered on a bare IAC from Accepting or
	// ReadingCharacters; the next byte selects a negotiation verb.
	StateStartNegotiation
	// StateWilling/StateRefusing/StateDo/StateDont expect an option code next.
	StateWilling
	StateRefusing
	StateDo
	StateDont
	// StateSubNegotiation expects an option code identifying which module
	// should take over collecting the rest of the subnegotiation payload.
	StateSubNegotiation
	// StateBadDo/StateBadWilling/StateBadRefusing/StateBadDont are the
	// safe-negotiation refusal states for an option code with no registered
	// module — sub-states of StateAccepting per spec.md §4.2.
	StateBadDo
	StateBadWilling
	StateBadRefusing
	StateBadDont
	// StateBadSubNegotiation drains an unrecognized subnegotiation until it
	// sees IAC, without raising any error to the host.
	StateBadSubNegotiation
	// StateBadSubNegotiationIAC has just seen an IAC while draining an
	// unrecognized subnegotiation, and is deciding whether it's IAC SE (done),
	// a doubled IAC (escaped literal, keep draining), or something else
	// (recover by continuing to drain).
	StateBadSubNegotiationIAC

	// StateActGoAhead and StateActEOR flush the line buffer when the remote
	// marks a prompt with IAC GA or IAC EOR instead of a newline, the same
	// way StateAct flushes it on a real line terminator.
	StateActGoAhead
	StateActEOR

	// coreStateCeiling is the first state number available for option modules
	// to allocate from. Keeping a gap (rather than allocating immediately
	// after the last core state) leaves room to add core states later without
	// colliding with already-shipped module state numbers.
	coreStateCeiling State = 1000
)

var coreStateNames = map[State]string{
	StateAccepting:            "Accepting",
	StateReadingCharacters:    "ReadingCharacters",
	StateAct:                  "Act",
	StateStartNegotiation:     "StartNegotiation",
	StateWilling:              "Willing",
	StateRefusing:             "Refusing",
	StateDo:                   "Do",
	StateDont:                 "Dont",
	StateSubNegotiation:       "SubNegotiation",
	StateBadDo:                "BadDo",
	StateBadWilling:           "BadWilling",
	StateBadRefusing:          "BadRefusing",
	StateBadDont:              "BadDont",
	StateBadSubNegotiation:    "BadSubNegotiation",
	StateBadSubNegotiationIAC: "BadSubNegotiationIAC",
	StateActGoAhead:           "ActGoAhead",
	StateActEOR:               "ActEOR",
}

func (s State) String() string {
	if name, ok := coreStateNames[s]; ok {
		return name
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
