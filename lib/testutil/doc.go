// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets. Socket paths are limited to 108 bytes (sun_path), and
// t.TempDir() paths under some build systems exceed that.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests do not call time.After directly. [Eventually] polls
// a condition, which is how supervisor tests observe a child process
// appearing or disappearing within the poll schedule.
//
// All helpers call t.Fatalf on failure.
package testutil
