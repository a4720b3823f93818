package telnet_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudtelnet/telnet"
	"github.com/mudtelnet/telnet/msdp"
	"github.com/mudtelnet/telnet/telopts"
)

const recvTimeout = 2 * time.Second

// discard is an io.Writer stub for tests that only care about the host-side
// callbacks and never inspect outbound wire bytes.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// syncBuffer is an io.Writer safe for the egress goroutine to write to while
// the test goroutine polls its contents with require.Eventually.
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

// feedByte drives one byte at a time through Interpret, the shape a host
// reading off a real connection would use, rather than the batched
// InterpretSlice convenience.
func feedByte(t *testing.T, interp *telnet.Interpreter, input []byte) {
	t.Helper()
	for _, b := range input {
		require.True(t, interp.Interpret(b))
	}
	require.True(t, interp.Drain())
}

// TestCharsetWillDoResponse drives an incoming IAC WILL CHARSET from the
// remote and confirms the engine answers IAC DO CHARSET, the activation the
// spec's CHARSET module grants whenever its Usage permits the remote to
// activate the option.
func TestCharsetWillDoResponse(t *testing.T) {
	wire := &syncBuffer{}
	cmds := make(chan telnet.Command, 4)

	interp, err := telnet.Build(context.Background(), wire, telnet.Config{
		Side:               telnet.SideClient,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules: []telnet.Module{
			telopts.RegisterCHARSET(telnet.UsageAllowRemote, telopts.CharsetConfig{}),
		},
		Callbacks: telnet.Callbacks{
			OnCommand: func(cmd telnet.Command) { cmds <- cmd },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	feedByte(t, interp, []byte{telnet.IAC, telnet.WILL, byte(telopts.CodeCHARSET)})

	select {
	case cmd := <-cmds:
		assert.Equal(t, telnet.WILL, cmd.OpCode)
		assert.Equal(t, telopts.CodeCHARSET, cmd.Option)
	case <-time.After(recvTimeout):
		t.Fatal("expected OnCommand to report the incoming WILL CHARSET")
	}

	require.Eventually(t, func() bool {
		return bytes.Equal(wire.Bytes(), []byte{telnet.IAC, telnet.DO, byte(telopts.CodeCHARSET)})
	}, recvTimeout, 5*time.Millisecond, "expected IAC DO CHARSET on the wire, got %v", wire.Bytes())
}

// TestNAWSSubnegotiationDelivery drives a full width/height subnegotiation
// and confirms both the decoded NAWSEvent and the raw OnCommand notification
// fire with the same payload.
func TestNAWSSubnegotiationDelivery(t *testing.T) {
	events := make(chan any, 4)
	cmds := make(chan telnet.Command, 4)

	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{telopts.RegisterNAWS(telnet.UsageAllowRemote)},
		Callbacks: telnet.Callbacks{
			OnModuleEvent: func(event any) { events <- event },
			OnCommand:     func(cmd telnet.Command) { cmds <- cmd },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	payload := []byte{0x00, 0x78, 0x00, 0x18}
	input := []byte{telnet.IAC, telnet.SB, byte(telopts.CodeNAWS)}
	input = append(input, payload...)
	input = append(input, telnet.IAC, telnet.SE)

	feedByte(t, interp, input)

	select {
	case ev := <-events:
		naws, ok := ev.(telopts.NAWSEvent)
		require.True(t, ok, "expected a NAWSEvent, got %T", ev)
		assert.Equal(t, 120, naws.Width)
		assert.Equal(t, 24, naws.Height)
	case <-time.After(recvTimeout):
		t.Fatal("expected a NAWSEvent")
	}

	select {
	case cmd := <-cmds:
		assert.Equal(t, telnet.SB, cmd.OpCode)
		assert.Equal(t, telopts.CodeNAWS, cmd.Option)
		assert.Equal(t, payload, cmd.Subnegotiation)
	case <-time.After(recvTimeout):
		t.Fatal("expected OnCommand to report the completed NAWS subnegotiation")
	}
}

// TestGMCPPackageDelivery drives a GMCP message and confirms the package
// name and JSON payload are split exactly on the first space.
func TestGMCPPackageDelivery(t *testing.T) {
	events := make(chan any, 4)

	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideClient,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{telopts.RegisterGMCP(telnet.UsageAllowRemote)},
		Callbacks: telnet.Callbacks{
			OnModuleEvent: func(event any) { events <- event },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	body := []byte(`Core.Hello {"client": "mudtelnet", "version": "1.0"}`)
	input := []byte{telnet.IAC, telnet.SB, byte(telopts.CodeGMCP)}
	input = append(input, body...)
	input = append(input, telnet.IAC, telnet.SE)

	feedByte(t, interp, input)

	select {
	case ev := <-events:
		gmcp, ok := ev.(telopts.GMCPEvent)
		require.True(t, ok, "expected a GMCPEvent, got %T", ev)
		assert.Equal(t, "Core.Hello", gmcp.Package)
		assert.Equal(t, `{"client": "mudtelnet", "version": "1.0"}`, gmcp.Payload)
	case <-time.After(recvTimeout):
		t.Fatal("expected a GMCPEvent")
	}
}

// TestMSDPSendRoundTrip drives an MSDP SEND command for a known variable
// and confirms the module replies on the wire with the resolved value,
// encoded back through the same codec.
func TestMSDPSendRoundTrip(t *testing.T) {
	wire := &syncBuffer{}

	model := telopts.MSDPModel{
		Sendable: []string{"HP"},
		Resolve: func(name string) (msdp.Value, bool) {
			if name == "HP" {
				return msdp.StringValue("100"), true
			}
			return msdp.Value{}, false
		},
	}

	interp, err := telnet.Build(context.Background(), wire, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules:            []telnet.Module{telopts.RegisterMSDP(telnet.UsageAllowRemote, model)},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	request := msdp.Encode(map[string]msdp.Value{"SEND": msdp.StringValue("HP")})
	input := []byte{telnet.IAC, telnet.SB, byte(telopts.CodeMSDP)}
	input = append(input, request...)
	input = append(input, telnet.IAC, telnet.SE)

	feedByte(t, interp, input)

	require.Eventually(t, func() bool {
		return len(wire.Bytes()) > 0
	}, recvTimeout, 5*time.Millisecond, "expected an MSDP reply on the wire")

	reply := wire.Bytes()
	prefix := []byte{telnet.IAC, telnet.SB, byte(telopts.CodeMSDP)}
	require.True(t, bytes.HasPrefix(reply, prefix))
	require.True(t, bytes.HasSuffix(reply, []byte{telnet.IAC, telnet.SE}))

	payload := reply[len(prefix) : len(reply)-2]
	table, err := msdp.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, msdp.StringValue("100"), table["HP"])
}

// TestUnknownOptionSafeRefusal drives an incoming DO for an option code no
// module registered, and confirms the engine answers WONT rather than
// silently dropping the byte or desyncing the automaton, while still
// reporting the raw command to OnCommand.
func TestUnknownOptionSafeRefusal(t *testing.T) {
	wire := &syncBuffer{}
	cmds := make(chan telnet.Command, 4)

	interp, err := telnet.Build(context.Background(), wire, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Callbacks: telnet.Callbacks{
			OnCommand: func(cmd telnet.Command) { cmds <- cmd },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	const unknown = 99
	feedByte(t, interp, []byte{telnet.IAC, telnet.DO, unknown})

	select {
	case cmd := <-cmds:
		assert.Equal(t, telnet.DO, cmd.OpCode)
		assert.Equal(t, telnet.TelOptCode(unknown), cmd.Option)
	case <-time.After(recvTimeout):
		t.Fatal("expected OnCommand to report the unrecognized DO")
	}

	require.Eventually(t, func() bool {
		return bytes.Equal(wire.Bytes(), []byte{telnet.IAC, telnet.WONT, unknown})
	}, recvTimeout, 5*time.Millisecond, "expected IAC WONT 99 on the wire, got %v", wire.Bytes())
}

// TestLiteralIACInText confirms a doubled IAC inside ordinary text data
// decodes to a single literal 0xFF byte (ISO-8859-1 codepoint U+00FF) in the
// delivered line, rather than being misread as the start of a command.
func TestLiteralIACInText(t *testing.T) {
	lines := make(chan string, 4)

	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "ISO-8859-1",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Callbacks: telnet.Callbacks{
			OnText: func(line string, ending telnet.LineEnding) { lines <- line },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	input := []byte{'A', telnet.IAC, telnet.IAC, 'B', '\n'}
	feedByte(t, interp, input)

	select {
	case line := <-lines:
		assert.Equal(t, "AÿB", line)
	case <-time.After(recvTimeout):
		t.Fatal("expected a line containing the literal 0xFF byte")
	}
}

// TestBufferOverflowIsFatal drives more unterminated line bytes than a
// small configured MaxBufferSize allows, and confirms overflow reports
// ErrLineTooLong once, then tears the session down rather than flushing the
// partial line and continuing.
func TestBufferOverflowIsFatal(t *testing.T) {
	errs := make(chan error, 4)

	interp, err := telnet.Build(context.Background(), discard{}, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		MaxBufferSize:      4,
		Callbacks: telnet.Callbacks{
			OnError: func(err error) { errs <- err },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		interp.Dispose()
		interp.Wait()
	})

	for _, b := range []byte("abcdefgh") {
		interp.Interpret(b)
	}

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, telnet.ErrLineTooLong)
	case <-time.After(recvTimeout):
		t.Fatal("expected ErrLineTooLong to be reported")
	}

	require.Eventually(t, func() bool {
		return !interp.Interpret('x')
	}, recvTimeout, 5*time.Millisecond, "expected Interpret to report disposal after a fatal overflow")

	assert.ErrorIs(t, interp.Wait(), telnet.ErrLineTooLong)
}
