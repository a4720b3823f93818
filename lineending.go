package telnet

// LineEnding indicates what caused a line of incoming text to be flushed to
// Callbacks.OnText.
type LineEnding byte

const (
	// LineEndingNewline means the line was terminated normally by a newline.
	LineEndingNewline LineEnding = iota
	// LineEndingGoAhead means the remote sent IAC GA right after the text,
	// conventionally marking the text as an unterminated prompt.
	LineEndingGoAhead
	// LineEndingEOR means the remote sent IAC EOR right after the text, the
	// modern replacement for IAC GA with the same prompt-marking intent.
	LineEndingEOR
)

func (e LineEnding) String() string {
	switch e {
	case LineEndingGoAhead:
		return "GoAhead"
	case LineEndingEOR:
		return "EOR"
	default:
		return "Newline"
	}
}
