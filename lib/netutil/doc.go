// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides the shell's small network helpers.
//
// [OutboundIPv4] finds the address the sidecar is reachable at by
// "connecting" a UDP socket to a public address and reading back the
// local endpoint the kernel picked. No datagram is sent; the connect
// only consults the routing table, so the answer is the interface a
// LAN peer would reach without enumerating NICs.
//
// [ReadResponse] and [DecodeJSON] bound HTTP response body reads at
// [MaxResponseSize]. They are for the JSON responses relayed by the
// fetch bridge, not for streaming bodies.
//
// [IsExpectedCloseError] classifies the errors seen when a pipe or
// connection is torn down underneath a reader, such as a sidecar's
// stdout after the sidecar is killed.
package netutil
