// Command mudecho is a minimal MUD-flavored TCP listener that negotiates
// the full option set this module implements (NAWS, CHARSET, TTYPE, EOR,
// SUPPRESS-GO-AHEAD, MSSP, GMCP, MSDP) and echoes submitted lines back
// with a prompt, grounded on the teacher's examples/tls_echo server half
// (minus TLS, which is out of this engine's scope).
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/mudtelnet/telnet"
	"github.com/mudtelnet/telnet/telopts"
	"github.com/mudtelnet/telnet/utils"
)

var startedAt = time.Now()

func session(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var interp *telnet.Interpreter

	callbacks := telnet.Callbacks{
		OnText: func(line string, ending telnet.LineEnding) {
			if line == "quit" {
				conn.Close()
				return
			}
			interp.Send("you said: " + line + "\r\n")
			interp.SendPrompt()
		},
	}

	_, callbacks = utils.NewDebugLog(slog.Default(), utils.DebugLogConfig{
		ErrorLevel:       slog.LevelError,
		CommandLevel:     utils.LevelNone,
		TextLevel:        slog.LevelInfo,
		ModuleEventLevel: slog.LevelInfo,
		TraceLevel:       utils.LevelNone,
	}, callbacks)

	var naws *telopts.NAWS
	var ttype *telopts.TTYPE

	var err error
	interp, err = telnet.Build(ctx, conn, telnet.Config{
		Side:               telnet.SideServer,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules: []telnet.Module{
			func() telnet.Module { naws = telopts.RegisterNAWS(telnet.UsageRequestRemote); return naws }(),
			telopts.RegisterCHARSET(telnet.UsageRequestLocal, telopts.CharsetConfig{
				PreferredOrder: []string{"UTF-8", "US-ASCII"},
			}),
			func() telnet.Module { ttype = telopts.RegisterTTYPE(telnet.UsageRequestRemote, nil); return ttype }(),
			telopts.RegisterEOR(telnet.UsageRequestLocal),
			telopts.RegisterSGA(telnet.UsageRequestLocal | telnet.UsageAllowRemote),
			telopts.RegisterMSSP(telnet.UsageAllowRemote, telopts.MSSPConfig{
				Refresh: func() (*telopts.MSSPRecord, error) {
					uptime := int(time.Since(startedAt).Seconds())
					return &telopts.MSSPRecord{
						Name:     "mudecho",
						Codebase: "mudtelnet/telnet",
						Uptime:   &uptime,
					}, nil
				},
			}),
			telopts.RegisterGMCP(telnet.UsageRequestLocal | telnet.UsageAllowRemote),
			telopts.RegisterMSDP(telnet.UsageAllowRemote, telopts.MSDPModel{
				Reportable: []string{"ROOM", "HEALTH"},
			}),
		},
		Callbacks: callbacks,
	})
	if err != nil {
		log.Println(err)
		return
	}
	defer interp.Wait()
	defer interp.Dispose()

	interp.Send("Welcome to mudecho! Type anything; 'quit' disconnects.\r\n")
	interp.SendPrompt()

	// naws/ttype are retained so a richer host could react to resize or
	// terminal-type events; this demo only negotiates them.
	_ = naws
	_ = ttype

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if !interp.InterpretSlice(buf[:n]) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func main() {
	addr := ":4242"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("mudecho listening on", addr)

	ctx := context.Background()
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatalln(err)
		}
		go session(ctx, conn)
	}
}
