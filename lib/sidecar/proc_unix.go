// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package sidecar

import (
	"errors"

	"golang.org/x/sys/unix"
)

// killProcessGroup sends SIGKILL to the process group led by pid. The
// sidecar is started as a group leader, so this also reaches anything
// it forked. A group that no longer exists is not an error.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// processAlive reports whether a process with this pid exists. A
// process owned by another user (EPERM) still exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
