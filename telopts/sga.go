package telopts

import "github.com/mudtelnet/telnet"

// CodeSGA is the registered option number for SUPPRESS-GO-AHEAD, historically
// a half-duplex optimization and repurposed by MUDs (alongside EOR) to mark
// where a prompt line ends.
const CodeSGA telnet.TelOptCode = 3

// SGA is a boolean-only option, same shape as EOR. It only asserts IAC GA as
// the prompt marker when EOR hasn't already claimed that role — EOR is the
// newer, unambiguous marker and takes priority whenever both are active.
type SGA struct {
	BaseModule
}

// RegisterSGA builds the SUPPRESS-GO-AHEAD module.
func RegisterSGA(usage telnet.ModuleUsage) *SGA {
	return &SGA{BaseModule: NewBaseModule(CodeSGA, "SUPPRESS-GO-AHEAD", usage)}
}

func (o *SGA) TransitionLocalState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionLocalState(newState); err != nil {
		return err
	}
	o.syncPromptOpCode()
	return nil
}

func (o *SGA) TransitionRemoteState(newState telnet.ModuleState) error {
	if err := o.BaseModule.TransitionRemoteState(newState); err != nil {
		return err
	}
	o.syncPromptOpCode()
	return nil
}

func (o *SGA) syncPromptOpCode() {
	if eor, ok := o.Context().ModuleByCode(CodeEOR); ok {
		if eor.LocalState() == telnet.ModuleActive || eor.RemoteState() == telnet.ModuleActive {
			return
		}
	}
	o.Context().SetPromptOpCode(telnet.GA)
}
