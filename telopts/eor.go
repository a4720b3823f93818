package telopts

import "github.com/mudtelnet/telnet"

// CodeEOR is the registered option number for End-Of-Record, the modern
// prompt-boundary marker preferred over IAC GA.
const CodeEOR telnet.TelOptCode = 25

// EOR is a boolean-only option: once either side has it active, the
// engine's SendPrompt call should emit IAC EOR instead of IAC GA. It never
// registers a subnegotiation.
type EOR struct {
	BaseModule
}

// RegisterEOR builds the EOR module.
func RegisterEOR(usage telnet.ModuleUsage) *EOR {
	return &EOR{BaseModule: NewBaseModule(CodeEOR, "EOR", usage)}
}

// TransitionLocalState switches SendPrompt to IAC EOR as soon as we've
// agreed to use it ourselves.
func (o *EOR) TransitionLocalState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionLocalState(newState); err != nil {
		return err
	}
	o.syncPromptOpCode()
	return nil
}

// TransitionRemoteState switches SendPrompt to IAC EOR as soon as the
// remote has agreed to use it, matching the teacher's symmetric
// Printer/Keyboard prompt-command toggling (one side emits, the other
// merely needs to recognize the marker, but both track the same flag).
func (o *EOR) TransitionRemoteState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionRemoteState(newState); err != nil {
		return err
	}
	o.syncPromptOpCode()
	return nil
}

func (o *EOR) syncPromptOpCode() {
	if o.LocalState() == telnet.ModuleActive || o.RemoteState() == telnet.ModuleActive {
		o.Context().SetPromptOpCode(telnet.EOR)
	} else {
		o.Context().SetPromptOpCode(telnet.GA)
	}
}
