// Command mudclient dials a mudecho-compatible server, reports its window
// size and terminal type, and prints incoming text plus any GMCP/MSDP
// traffic, grounded on the teacher's examples/mudclient (trimmed down to
// this engine's option set; no bubbletea/lipgloss terminal rendering).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/mudtelnet/telnet"
	"github.com/mudtelnet/telnet/telopts"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalln("syntax: mudclient <host>:<port>")
	}

	conn, err := net.Dial("tcp", os.Args[1])
	if err != nil {
		log.Fatalln(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	naws := telopts.RegisterNAWS(telnet.UsageRequestLocal)
	ttype := telopts.RegisterTTYPE(telnet.UsageAllowLocal, []string{"XTERM-MUDTELNET", "XTERM", "ANSI"})
	gmcp := telopts.RegisterGMCP(telnet.UsageAllowRemote | telnet.UsageAllowLocal)

	callbacks := telnet.Callbacks{
		OnText: func(line string, ending telnet.LineEnding) {
			fmt.Println(line)
		},
		OnModuleEvent: func(event any) {
			switch e := event.(type) {
			case telopts.GMCPEvent:
				fmt.Printf("[GMCP %s] %s\n", e.Package, e.Payload)
			case telopts.MSDPEvent:
				fmt.Printf("[MSDP] %s\n", e.JSON)
			case telopts.MSSPRecord:
				fmt.Printf("[MSSP] name=%q codebase=%q\n", e.Name, e.Codebase)
			}
		},
		OnError: func(err error) {
			fmt.Fprintln(os.Stderr, "telnet error:", err)
		},
	}

	interp, err := telnet.Build(ctx, conn, telnet.Config{
		Side:               telnet.SideClient,
		DefaultCharsetName: "US-ASCII",
		CharsetUsage:       telnet.CharsetUsageAlways,
		Modules: []telnet.Module{
			naws,
			telopts.RegisterCHARSET(telnet.UsageAllowLocal, telopts.CharsetConfig{
				AllowAny:       true,
				PreferredOrder: []string{"UTF-8"},
			}),
			ttype,
			telopts.RegisterEOR(telnet.UsageAllowLocal | telnet.UsageAllowRemote),
			telopts.RegisterSGA(telnet.UsageAllowLocal | telnet.UsageAllowRemote),
			telopts.RegisterMSSP(telnet.UsageAllowLocal, telopts.MSSPConfig{}),
			gmcp,
			telopts.RegisterMSDP(telnet.UsageAllowLocal, telopts.MSDPModel{}),
		},
		Callbacks: callbacks,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer interp.Dispose()
	defer interp.Wait()

	naws.SetLocalSize(80, 24)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if !interp.InterpretSlice(buf[:n]) {
					cancel()
					return
				}
			}
			if err != nil {
				cancel()
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		interp.Send(scanner.Text() + "\r\n")
	}
}
