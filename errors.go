package telnet

import "errors"

// ErrDisposed names the disposed condition. No Interpreter method returns
// it: Interpret, InterpretSlice and Drain report disposal by returning false.
var ErrDisposed = errors.New("telnet: interpreter has been disposed")

// ErrModuleCollision is returned by Build (wrapped with the colliding option
// code and module names) when two modules in Config.Modules register the
// same TelOptCode.
var ErrModuleCollision = errors.New("telnet: duplicate option code in module list")

// ErrLineTooLong is reported via Callbacks.OnError and is fatal: a line
// accumulated between Accept and Act that exceeds Config.MaxBufferSize means
// the remote is never going to send a terminator, so the ingress consumer
// stops, Dispose tears down the remaining goroutines, and the error is
// retrievable from Wait.
var ErrLineTooLong = errors.New("telnet: incoming line exceeded maximum buffer size")
