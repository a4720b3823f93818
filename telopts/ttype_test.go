package telopts

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudtelnet/telnet"
)

// syncBuffer is an io.Writer safe for the egress goroutine to write to while
// the test goroutine polls its contents.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// sbCommand builds a raw IAC SB <code> <payload> IAC SE byte sequence, for
// tests that need to inject a subnegotiation without going through an
// Interpreter's own egress encoder.
func sbCommand(code telnet.TelOptCode, payload []byte) []byte {
	out := []byte{telnet.IAC, telnet.SB, byte(code)}
	out = append(out, payload...)
	out = append(out, telnet.IAC, telnet.SE)
	return out
}

// TestTTYPERepeatClosesCycle drives three SB TTYPE IS exchanges where the
// third repeats the second, and confirms the repeat closes the cycle and
// raises exactly one TTYPEEvent naming all three (with the duplicate) in
// report order.
func TestTTYPERepeatClosesCycle(t *testing.T) {
	events := make(chan any, 4)
	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{RegisterTTYPE(telnet.UsageAllowRemote, nil)},
		Callbacks: telnet.Callbacks{
			OnModuleEvent: func(event any) { events <- event },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	for _, name := range []string{"XTERM", "ANSI", "ANSI"} {
		payload := append([]byte{ttypeIS}, []byte(name)...)
		require.True(t, interp.InterpretSlice(sbCommand(CodeTTYPE, payload)))
	}
	require.True(t, interp.Drain())

	select {
	case ev := <-events:
		ttype, ok := ev.(TTYPEEvent)
		require.True(t, ok, "expected a TTYPEEvent, got %T", ev)
		assert.Equal(t, []string{"XTERM", "ANSI", "ANSI"}, ttype.Names)
	case <-time.After(recvTimeout):
		t.Fatal("expected a TTYPEEvent once the cycle repeated")
	}

	select {
	case ev := <-events:
		t.Fatalf("expected exactly one TTYPEEvent, got a second: %#v", ev)
	default:
	}
}

// TestTTYPEOnSendCyclesThenRepeatsLast confirms the local-side responder
// walks its configured name list in order and then repeats the final entry
// forever, so a server that keeps sending SEND eventually sees a stable
// answer and stops asking. It reads the raw wire bytes the egress writer
// produced rather than a callback, since SB TTYPE IS replies are outbound
// traffic and Callbacks.OnCommand only reports what arrived from the remote.
func TestTTYPEOnSendCyclesThenRepeatsLast(t *testing.T) {
	ttype := RegisterTTYPE(telnet.UsageAllowLocal, []string{"XTERM-MUDTELNET", "XTERM", "ANSI"})
	wire := &syncBuffer{}

	interp, err := telnet.Build(context.Background(), wire, telnet.Config{
		Side:               telnet.SideClient,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{ttype},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	for i := 0; i < 5; i++ {
		require.True(t, interp.InterpretSlice(sbCommand(CodeTTYPE, []byte{ttypeSend})))
	}
	require.True(t, interp.Drain())

	want := []string{"XTERM-MUDTELNET", "XTERM", "ANSI", "ANSI", "ANSI"}
	var got []string
	require.Eventually(t, func() bool {
		got = parseTTYPENames(wire.Bytes())
		return len(got) >= len(want)
	}, recvTimeout, 5*time.Millisecond, "expected 5 SB TTYPE IS replies on the wire")

	assert.Equal(t, want, got)
}

// parseTTYPENames extracts every reported name from a raw byte stream
// carrying one or more IAC SB TTYPE IS <name> IAC SE sequences, in order.
func parseTTYPENames(wire []byte) []string {
	marker := []byte{telnet.IAC, telnet.SB, byte(CodeTTYPE), ttypeIS}
	var names []string
	for {
		idx := bytes.Index(wire, marker)
		if idx < 0 {
			return names
		}
		wire = wire[idx+len(marker):]
		end := bytes.Index(wire, []byte{telnet.IAC, telnet.SE})
		if end < 0 {
			return names
		}
		names = append(names, string(wire[:end]))
		wire = wire[end+2:]
	}
}
