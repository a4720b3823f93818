package telnet

import "fmt"

// Transition describes a single (state, trigger) -> state step, including the
// originating byte so on-entry actions and tracing hooks can see what drove
// the move.
type Transition struct {
	Source      State
	Destination State
	Trigger     Trigger
	Byte        byte
}

// EntryAction runs when a state is entered. It may return an error, which
// aborts the Fire call that caused it; it may also perform I/O via the egress
// callbacks that are
// reachable from the Interpreter it closes over.
type EntryAction func(t Transition) error

// TransitionHandler observes every transition the machine makes. Only one may
// be registered, per spec.md §4.1 ("a single observer, used for tracing").
type TransitionHandler func(t Transition)

type stateConfig struct {
	state        State
	permits      map[Trigger]State
	defaultDest  State
	hasDefault   bool
	immediate    State
	hasImmediate bool
	onEntry      []EntryAction
}

// StateConfig is the builder returned by StateMachine.Configure. Its methods
// return the receiver so calls can be chained.
type StateConfig struct {
	cfg *stateConfig
}

// Permit installs an explicit edge for one trigger.
func (c *StateConfig) Permit(trigger Trigger, dest State) *StateConfig {
	c.cfg.permits[trigger] = dest
	return c
}

// PermitByte is a convenience wrapper over Permit(ByteTrigger(b), dest).
func (c *StateConfig) PermitByte(b byte, dest State) *StateConfig {
	return c.Permit(ByteTrigger(b), dest)
}

// PermitDefault installs the catch-all edge used when no explicit Permit
// matches the fired trigger. This is how the safe-negotiation layer (§4.2)
// is implemented: a negotiation-verb state explicitly permits every option
// code it has a module for, and falls through to a Bad<Verb> state via the
// default for everything else — without ever enumerating the unclaimed
// codes at build time.
func (c *StateConfig) PermitDefault(dest State) *StateConfig {
	c.cfg.defaultDest = dest
	c.cfg.hasDefault = true
	return c
}

// PermitImmediate installs an epsilon transition: as soon as this state's
// on-entry actions finish running, the machine advances to dest without
// waiting for another trigger. Used by StateAct and the Bad* safety states,
// which are conceptually instantaneous "do this, then go back to Accepting"
// steps rather than states a byte can arrive in.
func (c *StateConfig) PermitImmediate(dest State) *StateConfig {
	c.cfg.immediate = dest
	c.cfg.hasImmediate = true
	return c
}

// OnEntry registers an action to run whenever this state is entered.
// Actions run in registration order; the first to return an error stops
// the chain and the error propagates out of Fire.
func (c *StateConfig) OnEntry(action EntryAction) *StateConfig {
	c.cfg.onEntry = append(c.cfg.onEntry, action)
	return c
}

// StateMachine is the deterministic finite automaton described in spec.md
// §4.1: (State x Trigger) -> State, with on-entry actions that may perform
// I/O, driven one trigger at a time by Fire.
type StateMachine struct {
	current     State
	states      map[State]*stateConfig
	transitions []TransitionHandler
}

// NewStateMachine creates a machine starting in the given state. Configure
// must be called for every state the machine can reach before Fire is used.
func NewStateMachine(start State) *StateMachine {
	return &StateMachine{
		current: start,
		states:  make(map[State]*stateConfig),
	}
}

// Configure returns the builder for a state's permits and on-entry actions.
// Calling Configure on the same state twice returns the same builder, so
// option modules installed later can still add permits to a core state
// (e.g. Willing/Do accepting a new option code) without clobbering earlier
// configuration.
func (m *StateMachine) Configure(s State) *StateConfig {
	cfg, ok := m.states[s]
	if !ok {
		cfg = &stateConfig{state: s, permits: make(map[Trigger]State)}
		m.states[s] = cfg
	}
	return &StateConfig{cfg: cfg}
}

// OnTransition registers the machine's single tracing observer, replacing
// any observer registered before.
func (m *StateMachine) OnTransition(h TransitionHandler) {
	m.transitions = []TransitionHandler{h}
}

// Current returns the state the machine currently occupies.
func (m *StateMachine) Current() State {
	return m.current
}

// Resolve returns the destination state for (state, trigger) without firing
// the transition, and whether an edge (explicit or default) was found. Used
// by AssertTotal to verify the totality invariant in tests.
func (m *StateMachine) Resolve(s State, trigger Trigger) (State, bool) {
	cfg, ok := m.states[s]
	if !ok {
		return 0, false
	}
	if dest, ok := cfg.permits[trigger]; ok {
		return dest, true
	}
	if cfg.hasDefault {
		return cfg.defaultDest, true
	}
	return 0, false
}

// Fire advances the machine by one trigger. It resolves the permit for the
// current state (explicit, falling back to default), enters the destination
// (running its on-entry actions and notifying the transition observer), and
// then chases any PermitImmediate epsilon edges before returning — so a
// caller firing one real byte may end up several logical states further
// along (e.g. Act immediately falling back through to Accepting).
func (m *StateMachine) Fire(trigger Trigger, b byte) error {
	cfg, ok := m.states[m.current]
	if !ok {
		return fmt.Errorf("telnet: state %s was never configured", m.current)
	}

	dest, ok := cfg.permits[trigger]
	if !ok {
		if !cfg.hasDefault {
			return fmt.Errorf("telnet: no transition defined for state %s on trigger %d (byte %q)", m.current, trigger, b)
		}
		dest = cfg.defaultDest
	}

	if err := m.enter(m.current, dest, trigger, b); err != nil {
		return err
	}

	// Chase epsilon edges. Each one carries forward the same byte that
	// started this Fire call; immediate transitions don't consume a new one,
	// they just let a state's on-entry action run before falling through.
	for {
		destCfg := m.states[dest]
		if !destCfg.hasImmediate {
			return nil
		}
		next := destCfg.immediate
		if err := m.enter(dest, next, trigger, b); err != nil {
			return err
		}
		dest = next
	}
}

// enter runs dest's on-entry actions, notifies the transition observer, and
// makes dest the current state.
func (m *StateMachine) enter(source, dest State, trigger Trigger, b byte) error {
	destCfg, ok := m.states[dest]
	if !ok {
		return fmt.Errorf("telnet: state %s was never configured", dest)
	}

	transition := Transition{Source: source, Destination: dest, Trigger: trigger, Byte: b}

	for _, action := range destCfg.onEntry {
		if err := action(transition); err != nil {
			return err
		}
	}

	m.current = dest

	for _, h := range m.transitions {
		h(transition)
	}

	return nil
}

// AssertTotal verifies the testable property from spec.md §8: for each given
// state, every byte 0..255 resolves to a transition (explicit or default).
// It returns the first (state, byte) pair with no resolvable edge, or nil if
// the machine is total over the given states.
func (m *StateMachine) AssertTotal(states []State) error {
	for _, s := range states {
		for b := 0; b < 256; b++ {
			if _, ok := m.Resolve(s, ByteTrigger(byte(b))); !ok {
				return fmt.Errorf("telnet: state %s has no transition for byte %d", s, b)
			}
		}
	}
	return nil
}
