// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

// Action names served by the companion shell.
const (
	ActionServerAddress = "server-address"
	ActionServerStatus  = "server-status"
	ActionToggleServer  = "toggle-server"
	ActionFetch         = "fetch"
	ActionServerInfo    = "server-info"
	ActionQuit          = "quit"
)

// AddressResponse is the result of server-address. Address is empty
// when the local address could not be determined.
type AddressResponse struct {
	Address string `cbor:"address,omitempty" json:"address,omitempty"`
}

// StatusResponse is the result of server-status and toggle-server.
// For toggle-server, Live is the state that was requested.
type StatusResponse struct {
	Live bool `cbor:"live" json:"live"`
}

// FetchRequest asks the shell to forward an HTTP request to the
// sidecar.
type FetchRequest struct {
	// URL is the path (and optional query) below the sidecar's base
	// address, without a leading slash: "api/settings".
	URL string `cbor:"url"`

	// Method is GET, POST or PUT, case-insensitive.
	Method string `cbor:"method"`

	// Token is sent as "Authorization: Bearer <token>".
	Token string `cbor:"token"`

	// Body is sent verbatim for POST and PUT when present.
	Body *string `cbor:"body,omitempty"`
}

// FetchResponse carries the sidecar's JSON response, re-serialized in
// compact form.
type FetchResponse struct {
	Body string `cbor:"body" json:"body"`
}

// ServerInfo is the result of server-info.
type ServerInfo struct {
	// Live is the liveness flag (the same value as server-status).
	Live bool `cbor:"live" json:"live"`

	// PID is the running sidecar's process ID, zero when none runs.
	PID int `cbor:"pid,omitempty" json:"pid,omitempty"`

	// Binary and Digest identify the sidecar executable.
	Binary string `cbor:"binary,omitempty" json:"binary,omitempty"`
	Digest string `cbor:"digest,omitempty" json:"digest,omitempty"`

	// StartedAt is an RFC 3339 timestamp, empty when none runs.
	StartedAt string `cbor:"started_at,omitempty" json:"started_at,omitempty"`

	// Address is the advertised server URL, empty when unavailable.
	Address string `cbor:"address,omitempty" json:"address,omitempty"`

	// Version is the shell's build version.
	Version string `cbor:"version,omitempty" json:"version,omitempty"`
}
