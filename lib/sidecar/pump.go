// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"bytes"
	"io"
	"log/slog"
)

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventStdout carries one line the child wrote to stdout.
	EventStdout EventKind = iota + 1

	// EventStderr carries one line the child wrote to stderr.
	EventStderr

	// EventExit reports that the child has been reaped. It is the
	// last event on a child's channel.
	EventExit
)

// Event is one item of a child's stdio stream.
type Event struct {
	Kind EventKind

	// Data is the line without its terminator, for stdout and stderr
	// events. The bytes are whatever the child wrote and need not be
	// valid UTF-8.
	Data []byte

	// ExitCode is the child's exit status for EventExit, or -1 when it
	// was killed by a signal or could not be waited for.
	ExitCode int

	// Err is the error returned by waiting for the child, if any.
	Err error
}

// replacementChar is what invalid UTF-8 sequences in child output
// become on the host log.
var replacementChar = []byte("\uFFFD")

// Pump relays a child's events until the channel is closed. Stdout
// lines go to stdout and stderr lines to stderr, one line per event,
// decoded lossily as UTF-8. Exit events are logged and otherwise
// ignored.
//
// Write errors on the host streams are ignored: the host log is best
// effort and must never back-pressure the child.
func Pump(events <-chan Event, stdout, stderr io.Writer, pid int, logger *slog.Logger) {
	for event := range events {
		switch event.Kind {
		case EventStdout:
			writeLine(stdout, event.Data)
		case EventStderr:
			writeLine(stderr, event.Data)
		case EventExit:
			logger.Info("sidecar exited",
				"pid", pid,
				"exit_code", event.ExitCode,
				"error", event.Err,
			)
		}
	}
}

// writeLine writes data plus a newline as a single Write so lines from
// concurrent pumps do not interleave mid-line.
func writeLine(w io.Writer, data []byte) {
	line := bytes.ToValidUTF8(data, replacementChar)
	line = append(line, '\n')
	_, _ = w.Write(line)
}

// trimLineEnding strips a trailing "\n" or "\r\n".
func trimLineEnding(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
