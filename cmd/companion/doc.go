// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Companion is the command-line client for a running companion shell.
// It speaks the shell's CBOR protocol over the bridge socket and
// exposes each bridge operation as a subcommand:
//
//	companion address              advertised sidecar URL
//	companion status               whether the sidecar is live
//	companion toggle               start or stop the sidecar
//	companion info                 pid, binary, digest and uptime
//	companion fetch <path>         forward a request to the sidecar
//	companion quit                 shut the shell down
//
// The socket is taken from --socket, then $COMPANION_SOCKET, then the
// shell's default location.
package main
