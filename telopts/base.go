// Package telopts holds one file per negotiated telnet option: NAWS,
// CHARSET, TTYPE, EOR, SUPPRESS-GO-AHEAD, MSSP, GMCP, and MSDP. Each type
// implements telnet.Module and is handed to telnet.Config.Modules by the
// host; none of them talk to the wire directly, only through the
// *telnet.ModuleContext they receive in Install.
package telopts

import (
	"fmt"
	"sync/atomic"

	"github.com/mudtelnet/telnet"
)

// BaseModule carries the bookkeeping every option module needs regardless
// of its wire format: option code, display name, usage policy, negotiated
// local/remote state, and the ModuleContext handed to it at Install time.
// Concrete modules embed it and override Install/SubnegotiationEntry when
// they have a payload to collect.
type BaseModule struct {
	code  telnet.TelOptCode
	name  string
	usage telnet.ModuleUsage
	ctx   *telnet.ModuleContext

	localState  uint32
	remoteState uint32
}

// NewBaseModule constructs the embeddable common state for an option
// module under the given code/name/usage.
func NewBaseModule(code telnet.TelOptCode, name string, usage telnet.ModuleUsage) BaseModule {
	return BaseModule{code: code, name: name, usage: usage}
}

func (m *BaseModule) Code() telnet.TelOptCode  { return m.code }
func (m *BaseModule) Name() string             { return m.name }
func (m *BaseModule) Usage() telnet.ModuleUsage { return m.usage }

// Install records the ModuleContext. Modules that override Install (every
// module with a subnegotiation payload does) must call this explicitly.
func (m *BaseModule) Install(ctx *telnet.ModuleContext) { m.ctx = ctx }

// Context returns the ModuleContext recorded by Install, for use by the
// embedding module's own methods.
func (m *BaseModule) Context() *telnet.ModuleContext { return m.ctx }

func (m *BaseModule) LocalState() telnet.ModuleState {
	return telnet.ModuleState(atomic.LoadUint32(&m.localState))
}

func (m *BaseModule) RemoteState() telnet.ModuleState {
	return telnet.ModuleState(atomic.LoadUint32(&m.remoteState))
}

// TransitionLocalState just records the new state; modules that need to
// react to a transition (send a subnegotiation, reset scratch state)
// override this and call the base method first.
func (m *BaseModule) TransitionLocalState(newState telnet.ModuleState) error {
	atomic.StoreUint32(&m.localState, uint32(newState))
	return nil
}

func (m *BaseModule) TransitionRemoteState(newState telnet.ModuleState) error {
	atomic.StoreUint32(&m.remoteState, uint32(newState))
	return nil
}

// Subnegotiate returns an error for any payload. The kernel never calls it;
// a subnegotiation for an option with no registered payload state (EOR,
// SUPPRESS-GO-AHEAD) is drained by StateBadSubNegotiation instead.
func (m *BaseModule) Subnegotiate(payload []byte) error {
	return fmt.Errorf("telopts: %s does not accept a subnegotiation (got %d bytes)", m.name, len(payload))
}

// SubnegotiationEntry is the default for boolean-only options: they never
// register a payload-collecting state.
func (m *BaseModule) SubnegotiationEntry() (telnet.State, bool) {
	return 0, false
}
