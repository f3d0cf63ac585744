// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command companion-shell is the desktop-shell control plane for the
// companion server. It mints a session token, supervises the bundled
// "server" sidecar, and serves the UI bridge on a local Unix socket
// until it receives SIGINT, SIGTERM or a quit request, at which point
// it kills the sidecar and exits.
//
// Startup order: configuration, logging, reaping a sidecar orphaned
// by a previous crash, the session token, the supervisor loop, the
// optional auto-start, and finally the bridge socket.
//
// Exit status is 0 after a requested shutdown and 1 with an "error:"
// line on stderr when startup fails.
package main
