// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shellbridge is the surface the local UI uses to reach the
// sidecar: the advertised server URL, the liveness flag, the toggle,
// and an authenticated HTTP forwarder to the sidecar's API. It also
// owns the shutdown hook that ends the supervisor when the shell
// exits.
//
// A [Bridge] holds no lock of its own. Status and toggle go through
// the supervisor's mutex; fetch does network I/O with no lock held, so
// a slow sidecar response never delays a status read.
//
// [Bridge.Register] exposes the operations as actions on an
// [ipc.SocketServer].
package shellbridge
