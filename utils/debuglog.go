// Package utils collects optional diagnostic helpers that hang off the
// engine's Callbacks without being required for correct operation, the
// same supporting role github.com/moodclient/telnet/utils plays for its
// own Terminal.
package utils

import (
	"context"
	"log/slog"

	"github.com/mudtelnet/telnet"
)

// LevelNone disables a DebugLogConfig category entirely: slog.Logger.Enabled
// never returns true for a level below every real slog.Level constant.
const LevelNone slog.Level = -8

// DebugLogConfig selects, per category, which slog.Level an event is
// logged at (or LevelNone to suppress the category).
type DebugLogConfig struct {
	ErrorLevel       slog.Level
	CommandLevel     slog.Level
	TextLevel        slog.Level
	ModuleEventLevel slog.Level
	TraceLevel       slog.Level
}

// DebugLog subscribes to an Interpreter's Callbacks and renders every event
// as a structured slog line. It never affects negotiation — callback logic
// and protocol logic are entirely separate, exactly as in the teacher's
// utils.DebugLog wired through RegisterEncounteredErrorHook/
// RegisterPrinterOutputHook/etc.
type DebugLog struct {
	logger *slog.Logger
	config DebugLogConfig
}

// NewDebugLog returns a *DebugLog, and wraps cb so its existing
// handlers (if any) still fire alongside logging. Attach the result as
// Config.Callbacks before calling telnet.Build.
func NewDebugLog(logger *slog.Logger, config DebugLogConfig, cb telnet.Callbacks) (*DebugLog, telnet.Callbacks) {
	d := &DebugLog{logger: logger, config: config}

	wrapped := cb
	prevText, prevCommand, prevModule, prevError, prevTrace := cb.OnText, cb.OnCommand, cb.OnModuleEvent, cb.OnError, cb.OnTrace

	wrapped.OnText = func(line string, ending telnet.LineEnding) {
		d.logger.LogAttrs(context.Background(), d.config.TextLevel, "received text",
			slog.String("line", line), slog.String("ending", ending.String()))
		if prevText != nil {
			prevText(line, ending)
		}
	}
	wrapped.OnCommand = func(cmd telnet.Command) {
		d.logger.LogAttrs(context.Background(), d.config.CommandLevel, "received command",
			slog.Int("opcode", int(cmd.OpCode)), slog.Int("option", int(cmd.Option)))
		if prevCommand != nil {
			prevCommand(cmd)
		}
	}
	wrapped.OnModuleEvent = func(event any) {
		d.logger.LogAttrs(context.Background(), d.config.ModuleEventLevel, "module event",
			slog.Any("event", event))
		if prevModule != nil {
			prevModule(event)
		}
	}
	wrapped.OnError = func(err error) {
		d.logger.LogAttrs(context.Background(), d.config.ErrorLevel, "encountered error",
			slog.Any("error", err))
		if prevError != nil {
			prevError(err)
		}
	}
	wrapped.OnTrace = func(line string) {
		d.logger.LogAttrs(context.Background(), d.config.TraceLevel, line)
		if prevTrace != nil {
			prevTrace(line)
		}
	}

	return d, wrapped
}
