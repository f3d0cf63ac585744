// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import "fmt"

// Command is a message for the supervisor loop.
type Command int

const (
	// CommandStart spawns the sidecar if none is running.
	CommandStart Command = iota + 1

	// CommandStop kills the running sidecar, if any.
	CommandStop

	// CommandEnd kills the running sidecar and ends the loop.
	CommandEnd
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandEnd:
		return "end"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}
