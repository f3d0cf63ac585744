// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
)

// NewCommandLogger creates a structured logger for command
// diagnostics written to w. On a terminal the output is
// slog.TextHandler for people; otherwise slog.JSONHandler, matching
// the shell's own log format.
//
// Callers scope the logger with command context via With():
//
//	logger := cli.NewCommandLogger(os.Stderr, verbose).With("command", "fetch")
func NewCommandLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}
