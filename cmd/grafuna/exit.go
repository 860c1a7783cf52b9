package main

import (
	"io"
	"log/slog"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/output/exitcode"
	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/ui"
)

// exitWith reports err and returns the process exit code for it.
func exitWith(err error) int {
	code := exitcode.FromError(err)
	switch code {
	case exitcode.Success:
	case exitcode.Interrupted:
		ui.PrintWarning(code.Description())
	default:
		ui.PrintError(err.Error())
	}
	return int(code)
}

// newLogger writes text logs to w. Debug also turns on request tracing.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
