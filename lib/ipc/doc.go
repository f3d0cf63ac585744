// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc is the local socket protocol between the companion shell
// and its front ends. The shell serves the UI bridge operations on a
// Unix socket; cmd/companion and tests call them with [Client].
//
// Each connection carries exactly one request and one response, both
// single CBOR values. A request is a map with an "action" key plus
// action-specific fields. The response is always the [Response]
// envelope: {ok, error?, data?}, where data holds the action's CBOR
// encoded result.
//
// The socket is created with mode 0600. Anyone who can open it can
// control the sidecar, so it lives in the user's runtime directory.
package ipc
