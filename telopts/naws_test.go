package telopts

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudtelnet/telnet"
)

// recvTimeout is generous enough to absorb scheduler jitter on a loaded CI
// box, but short enough that a genuinely missing event still fails fast.
const recvTimeout = 2 * time.Second

// buildHarness installs a single module into a fresh Interpreter and returns
// it alongside a channel of every module event the host callback observed,
// driving bytes through InterpretSlice/Drain rather than the wire.
func buildHarness(t *testing.T, side telnet.Side, modules ...telnet.Module) (*telnet.Interpreter, chan any) {
	t.Helper()

	events := make(chan any, 16)
	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               side,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            modules,
		Callbacks: telnet.Callbacks{
			OnModuleEvent: func(event any) { events <- event },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})
	return interp, events
}

// discard is an io.Writer stub for tests that never inspect outbound bytes.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// TestNAWSEscapedDimension drives IAC SB NAWS 00 50 00 FF IAC IAC IAC SE
// through the engine and confirms the doubled IAC inside the height byte is
// unescaped to a literal 0xFF rather than being mistaken for the
// terminator, yielding width=0x0050, height=0x00FF.
func TestNAWSEscapedDimension(t *testing.T) {
	interp, events := buildHarness(t, telnet.SideServer, RegisterNAWS(telnet.UsageAllowRemote))

	input := []byte{
		telnet.IAC, telnet.SB, byte(CodeNAWS),
		0x00, 0x50, 0x00, telnet.IAC, telnet.IAC,
		telnet.IAC, telnet.SE,
	}
	require.True(t, interp.InterpretSlice(input))
	require.True(t, interp.Drain())

	select {
	case ev := <-events:
		naws, ok := ev.(NAWSEvent)
		require.True(t, ok, "expected a NAWSEvent, got %T", ev)
		assert.Equal(t, 0x0050, naws.Width)
		assert.Equal(t, 0x00FF, naws.Height)
	case <-time.After(recvTimeout):
		t.Fatal("expected a NAWSEvent")
	}
}

// TestNAWSRejectsShortPayload confirms a malformed (non-4-byte) NAWS
// subnegotiation raises an error rather than panicking or silently
// misreading the dimensions.
func TestNAWSRejectsShortPayload(t *testing.T) {
	errs := make(chan error, 1)
	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{RegisterNAWS(telnet.UsageAllowRemote)},
		Callbacks: telnet.Callbacks{
			OnError: func(e error) { errs <- e },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	input := []byte{telnet.IAC, telnet.SB, byte(CodeNAWS), 0x00, 0x50, telnet.IAC, telnet.SE}
	require.True(t, interp.InterpretSlice(input))
	require.True(t, interp.Drain())

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(recvTimeout):
		t.Fatal("expected an error for a short NAWS payload")
	}
}

// TestNAWSSetLocalSizeReportsOnceActive confirms SetLocalSize queues nothing
// until NAWS activates locally, then sends exactly the stored dimensions.
func TestNAWSSetLocalSizeReportsOnceActive(t *testing.T) {
	naws := RegisterNAWS(telnet.UsageAllowLocal)
	wire := &syncBuffer{}
	interp, err := telnet.Build(context.Background(), wire, telnet.Config{
		Side:               telnet.SideClient,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{naws},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	naws.SetLocalSize(80, 24)
	require.True(t, interp.Drain())
	assert.Empty(t, wire.Bytes(), "SetLocalSize must not send before NAWS is active")

	// The remote asks us to activate NAWS locally.
	input := []byte{telnet.IAC, telnet.DO, byte(CodeNAWS)}
	require.True(t, interp.InterpretSlice(input))
	require.True(t, interp.Drain())

	report := sbCommand(CodeNAWS, []byte{0x00, 80, 0x00, 24})
	require.Eventually(t, func() bool {
		return bytes.Contains(wire.Bytes(), report)
	}, recvTimeout, 5*time.Millisecond, "expected SB NAWS 80x24 on the wire")

	w, h := func() (int, int) {
		naws.mu.Lock()
		defer naws.mu.Unlock()
		return naws.localWidth, naws.localHeight
	}()
	assert.Equal(t, 80, w)
	assert.Equal(t, 24, h)
}
