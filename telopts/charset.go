package telopts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/mudtelnet/telnet"
	"golang.org/x/text/encoding/ianaindex"
)

// CodeCHARSET is the registered option number for RFC 2066 character set
// negotiation.
const CodeCHARSET telnet.TelOptCode = 42

const (
	charsetRequest byte = iota
	charsetAccepted
	charsetRejected
	charsetTTableIs
	charsetTTableRejected
	charsetTTableAck
	charsetTTableNak
)

// CharsetNegotiatedEvent is raised once both sides settle on a character
// set, whichever side initiated the request.
type CharsetNegotiatedEvent struct {
	Name string
}

// CharsetConfig controls which encodings this side will offer and accept.
type CharsetConfig struct {
	// PreferredOrder lists the IANA names we offer, in preference order,
	// the moment CHARSET goes active locally. Empty means we never
	// initiate a request (but still answer one from the remote).
	PreferredOrder []string
	// AllowAny accepts any IANA-recognized name the remote offers, instead
	// of restricting acceptance to PreferredOrder.
	AllowAny bool
}

// Charset implements RFC 2066: both sides may send WILL/DO CHARSET, and each
// side with a PreferredOrder sends its own REQUEST as soon as CHARSET goes
// active locally. Simultaneous offers are arbitrated by Side, not by which
// side sent WILL first (that is not tracked): a server that receives a
// REQUEST while its own is unanswered replies REJECTED, while a client in
// the same position answers the server's REQUEST normally.
type Charset struct {
	BaseModule

	config CharsetConfig
	allow  map[string]struct{}

	entry telnet.State

	awaitingOwnOffer bool
	bestOffer        string
}

// RegisterCHARSET builds the CHARSET module under the given usage and
// offer/acceptance policy.
func RegisterCHARSET(usage telnet.ModuleUsage, config CharsetConfig) *Charset {
	allow := make(map[string]struct{}, len(config.PreferredOrder))
	for _, name := range config.PreferredOrder {
		allow[name] = struct{}{}
	}
	return &Charset{
		BaseModule: NewBaseModule(CodeCHARSET, "CHARSET", usage),
		config:     config,
		allow:      allow,
	}
}

func (o *Charset) Install(ctx *telnet.ModuleContext) {
	o.BaseModule.Install(ctx)
	o.entry, _ = ctx.RegisterSubnegotiation(o.onComplete)
}

func (o *Charset) SubnegotiationEntry() (telnet.State, bool) {
	return o.entry, true
}

// TransitionLocalState sends our offer the moment CHARSET activates locally,
// whether or not the remote has already sent a REQUEST of its own. It sends
// at most one offer until a REJECTED or ACCEPTED answer clears
// awaitingOwnOffer.
func (o *Charset) TransitionLocalState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionLocalState(newState); err != nil {
		return err
	}

	if newState != telnet.ModuleActive || len(o.config.PreferredOrder) == 0 {
		return nil
	}
	if o.awaitingOwnOffer {
		return nil
	}

	o.awaitingOwnOffer = true
	o.writeRequest(o.config.PreferredOrder)
	return nil
}

func (o *Charset) TransitionRemoteState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionRemoteState(newState); err != nil {
		return err
	}
	if newState == telnet.ModuleInactive {
		o.bestOffer = ""
	}
	return nil
}

func (o *Charset) writeRequest(names []string) {
	var buf bytes.Buffer
	buf.WriteByte(charsetRequest)
	for _, name := range names {
		buf.WriteByte(';')
		buf.WriteString(name)
	}
	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeCHARSET, Subnegotiation: buf.Bytes()})
}

func (o *Charset) writeAccept(name string) {
	sub := append([]byte{charsetAccepted}, []byte(name)...)
	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeCHARSET, Subnegotiation: sub})
}

func (o *Charset) writeReject() {
	o.Context().SendCommand(telnet.Command{OpCode: telnet.SB, Option: CodeCHARSET, Subnegotiation: []byte{charsetRejected}})
}

func (o *Charset) isAcceptable(name string) bool {
	if _, err := ianaindex.IANA.Encoding(name); err != nil {
		return false
	}
	if o.config.AllowAny {
		return true
	}
	_, ok := o.allow[name]
	return ok
}

func (o *Charset) onComplete(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("telopts: charset received an empty subnegotiation")
	}

	switch payload[0] {
	case charsetRequest:
		return o.onRequest(payload[1:])
	case charsetAccepted:
		return o.onAccepted(string(payload[1:]))
	case charsetRejected:
		return o.onRejected()
	default:
		// TTABLE-* is a fallback translation-table mechanism we don't
		// implement (IANA-named charsets cover every MUD client in
		// practice); acknowledge nothing and move on.
		return nil
	}
}

func (o *Charset) onRequest(names []byte) error {
	if len(names) == 0 {
		o.writeReject()
		return nil
	}

	// A leading "[TTABLE]" marker precedes the separator-delimited name
	// list when the offering side also supports translation tables; skip
	// it, we only ever answer with a named IANA charset.
	if len(names) > 8 && string(names[:8]) == "[TTABLE]" {
		names = names[8:]
	}

	sep := names[0]
	candidates := strings.Split(string(names), string(sep))

	var chosen string
	for _, name := range candidates[1:] {
		if name == "" {
			continue
		}
		if name == "UTF-8" {
			// However this offer is resolved, we now know the remote
			// understands UTF-8: promote our own default away from
			// US-ASCII so outbound text stops assuming 7-bit only.
			if changed, err := o.Context().Charset().PromoteDefault("US-ASCII", "UTF-8"); err == nil && changed {
				o.Context().RaiseEvent(CharsetNegotiatedEvent{Name: "UTF-8 (default promotion)"})
			}
		}
		if chosen == "" && o.isAcceptable(name) {
			chosen = name
		}
	}

	if chosen == "" {
		o.writeReject()
		return nil
	}

	// A server still waiting on the answer to its own offer refuses the
	// peer's competing REQUEST with REJECTED.
	if o.awaitingOwnOffer && o.Context().Side() == telnet.SideServer {
		o.writeReject()
		return nil
	}

	if err := o.Context().Charset().SetNegotiated(chosen); err != nil {
		o.writeReject()
		return nil
	}

	o.bestOffer = chosen
	o.Context().RaiseEvent(CharsetNegotiatedEvent{Name: chosen})
	o.writeAccept(chosen)
	return nil
}

func (o *Charset) onAccepted(name string) error {
	o.awaitingOwnOffer = false

	if !o.isAcceptable(name) {
		return fmt.Errorf("telopts: charset peer accepted unrecognized charset %q", name)
	}

	if err := o.Context().Charset().SetNegotiated(name); err != nil {
		return err
	}

	o.bestOffer = name
	o.Context().RaiseEvent(CharsetNegotiatedEvent{Name: name})
	return nil
}

func (o *Charset) onRejected() error {
	o.awaitingOwnOffer = false
	// Revert to whatever the default charset currently is; SetNegotiated
	// with the default name undoes any partial switch.
	return o.Context().Charset().SetNegotiated(o.Context().Charset().DefaultName())
}
