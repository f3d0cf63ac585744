// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import "testing"

func TestOutboundIPv4Loopback(t *testing.T) {
	// Routing toward loopback always selects the loopback interface,
	// so this works on hosts without a default route.
	address, err := OutboundIPv4("127.0.0.1:80")
	if err != nil {
		t.Fatalf("OutboundIPv4: %v", err)
	}
	if address != "127.0.0.1" {
		t.Errorf("address = %q, want %q", address, "127.0.0.1")
	}
}

func TestOutboundIPv4Failures(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing port", "127.0.0.1"},
		{"ipv6 only", "[::1]:80"},
		{"garbage", "not a host:port:at all"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			address, err := OutboundIPv4(test.target)
			if err == nil {
				t.Fatalf("OutboundIPv4(%q) = %q, want error", test.target, address)
			}
		})
	}
}
