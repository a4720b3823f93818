package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMachine builds a minimal machine that exercises the core negotiation
// states plus one registered module code, the same shape Build produces, but
// without the ingress/egress goroutines.
func newTestMachine(t *testing.T) (*Interpreter, *StateMachine) {
	t.Helper()

	charset := mustCharset(t)
	interp := &Interpreter{
		charset:       charset,
		modules:       newModuleRegistry(),
		maxBufferSize: defaultMaxBufferSize,
	}
	interp.pump = newEventPump(Callbacks{})
	interp.out = newEgress(nil, charset, interp.pump)
	interp.fsm = NewStateMachine(StateAccepting)
	interp.configureCoreStates()
	return interp, interp.fsm
}

func mustCharset(t *testing.T) *Charset {
	t.Helper()
	c, err := NewCharset("US-ASCII", CharsetUsageAlways)
	require.NoError(t, err)
	return c
}

// TestCoreStatesAreTotal verifies spec.md's central safety property: every
// core negotiation state resolves every possible byte, explicit or default,
// so an unrecognized option code can never desync the automaton.
func TestCoreStatesAreTotal(t *testing.T) {
	_, fsm := newTestMachine(t)

	err := fsm.AssertTotal([]State{
		StateAccepting,
		StateReadingCharacters,
		StateStartNegotiation,
		StateWilling,
		StateRefusing,
		StateDo,
		StateDont,
		StateSubNegotiation,
		StateBadSubNegotiation,
		StateBadSubNegotiationIAC,
	})
	assert.NoError(t, err)
}

// TestIACDoubleEscapesToLiteral fires a doubled IAC from Accepting and
// confirms the machine lands back in ReadingCharacters (a literal 0xFF data
// byte), not any negotiation state.
func TestIACDoubleEscapesToLiteral(t *testing.T) {
	_, fsm := newTestMachine(t)

	require.NoError(t, fsm.Fire(ByteTrigger(IAC), IAC))
	assert.Equal(t, StateStartNegotiation, fsm.Current())

	require.NoError(t, fsm.Fire(ByteTrigger(IAC), IAC))
	assert.Equal(t, StateReadingCharacters, fsm.Current())
}

// TestUnknownOptionDoRefusesWithoutModule drives IAC DO <unregistered code>
// through the machine and confirms it resolves through the BadDo safety
// state back to Accepting, replying WONT on the wire rather than erroring or
// getting stuck.
func TestUnknownOptionDoRefusesWithoutModule(t *testing.T) {
	interp, fsm := newTestMachine(t)

	require.NoError(t, fsm.Fire(ByteTrigger(IAC), IAC))
	require.NoError(t, fsm.Fire(ByteTrigger(DO), DO))
	require.NoError(t, fsm.Fire(ByteTrigger(99), 99))

	assert.Equal(t, StateAccepting, fsm.Current())

	select {
	case item := <-interp.out.items:
		require.True(t, item.isCommand)
		assert.Equal(t, WONT, item.command.OpCode)
		assert.Equal(t, TelOptCode(99), item.command.Option)
	default:
		t.Fatal("expected a queued WONT reply")
	}
}

// TestRegisteredOptionRoutesPastBadStates confirms that once a module code
// is wired into the negotiation states via a dedicated landing state (the
// pattern wireNegotiation uses), the matching byte no longer falls through
// to the Bad* default, and an unrelated code still does.
func TestRegisteredOptionRoutesPastBadStates(t *testing.T) {
	interp, fsm := newTestMachine(t)

	const code = TelOptCode(31)
	var fired bool

	landing := interp.modules.allocateStates(1)
	fsm.Configure(landing).
		OnEntry(func(tr Transition) error {
			fired = true
			return nil
		}).
		PermitImmediate(StateAccepting)
	fsm.Configure(StateWilling).Permit(ByteTrigger(byte(code)), landing)

	require.NoError(t, fsm.Fire(ByteTrigger(IAC), IAC))
	require.NoError(t, fsm.Fire(ByteTrigger(WILL), WILL))
	require.NoError(t, fsm.Fire(ByteTrigger(byte(code)), byte(code)))

	assert.True(t, fired)
	assert.Equal(t, StateAccepting, fsm.Current())

	// A different, unregistered code still falls through to BadWilling.
	fired = false
	require.NoError(t, fsm.Fire(ByteTrigger(IAC), IAC))
	require.NoError(t, fsm.Fire(ByteTrigger(WILL), WILL))
	require.NoError(t, fsm.Fire(ByteTrigger(200), 200))
	assert.False(t, fired)
	assert.Equal(t, StateAccepting, fsm.Current())
}

// TestResolveMatchesFire confirms AssertTotal's non-firing Resolve path
// agrees with what Fire actually does for a representative sample of bytes,
// so the totality check isn't testing a different code path than the real
// dispatch.
func TestResolveMatchesFire(t *testing.T) {
	_, fsm := newTestMachine(t)

	for _, b := range []byte{0x00, 0x41, cr, IAC} {
		dest, ok := fsm.Resolve(StateAccepting, ByteTrigger(b))
		require.True(t, ok)

		require.NoError(t, fsm.Fire(ByteTrigger(b), b))
		assert.Equal(t, dest, fsm.Current())

		// Reset for the next sample.
		for fsm.Current() != StateAccepting {
			require.NoError(t, fsm.Fire(ByteTrigger(lf), lf))
		}
	}
}
