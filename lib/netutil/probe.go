// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"fmt"
	"net"
)

// DefaultProbeTarget is the public address the outbound probe routes
// toward. Nothing is ever sent to it.
const DefaultProbeTarget = "8.8.8.8:80"

// OutboundIPv4 returns the local IPv4 address the kernel would use to
// reach target ("host:port"). The socket is bound to 0.0.0.0:0 and
// connected, which for UDP only selects a route.
func OutboundIPv4(target string) (string, error) {
	remote, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return "", fmt.Errorf("resolving probe target %s: %w", target, err)
	}

	conn, err := net.DialUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0}, remote)
	if err != nil {
		return "", fmt.Errorf("connecting probe socket to %s: %w", target, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP == nil {
		return "", fmt.Errorf("probe socket has no local address (got %v)", conn.LocalAddr())
	}
	ipv4 := local.IP.To4()
	if ipv4 == nil {
		return "", fmt.Errorf("probe socket local address %s is not IPv4", local.IP)
	}
	return ipv4.String(), nil
}
