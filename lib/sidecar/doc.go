// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sidecar supervises the companion server sidecar: the bundled
// "server" executable that serves the HTTP API the UI talks to.
//
// A [Supervisor] owns at most one child process. Every spawn and kill
// happens on the supervisor's own goroutine ([Supervisor.Run]), which
// consumes [Command] values (Start, Stop, End) from a FIFO channel.
// Callers never touch the child directly: they post commands and read
// the liveness flag under the supervisor's mutex.
//
// The loop is driven by a poll ticker. On each tick it takes at most
// one command without blocking:
//
//	           Start                Stop / End
//	  Idle ───────────────▶ Running ───────────▶ Idle
//	   │  Stop: no-op          │ Start: no-op
//	   └─ End: exit loop       └─ End: kill, then exit loop
//
// End is terminal. [Supervisor.End] bypasses the queue: the loop acts
// on it at the next tick and drops anything still queued. From then on
// [Supervisor.Post] returns [ErrStopped].
//
// A killed child that is not reaped within the kill wait is remembered,
// and Start is a no-op until it has been reaped, so two children never
// overlap.
//
// [Supervisor.Toggle] flips the liveness flag optimistically, before
// the loop has acted, so a UI reading the status right after a toggle
// sees the requested state. Redundant commands are no-ops in the loop,
// which keeps rapid toggling consistent.
//
// [ExecSpawner] starts the real sidecar with TOKEN=<session token> in
// its environment, in its own process group so a kill reaches anything
// it forked. Each child's stdout and stderr lines become [Event] values
// relayed to the host's stdout and stderr by [Pump].
//
// The supervisor records the running child in a CBOR state file. If
// the shell dies without killing its sidecar, [ReapOrphan] finds and
// kills the leftover process on the next start.
//
// A child that exits on its own is logged but not reaped from the
// liveness flag: the flag stays set until the next command. Restart on
// crash is not a goal of the shell.
package sidecar
