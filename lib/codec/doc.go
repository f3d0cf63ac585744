// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shell's CBOR configuration.
//
// The shell speaks two formats. JSON is what the sidecar's HTTP API
// returns and what the fetch bridge hands back to the UI. CBOR is used
// for everything internal: the bridge socket protocol between the UI
// front end and the shell, and the on-disk sidecar state file used for
// orphan reaping.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
