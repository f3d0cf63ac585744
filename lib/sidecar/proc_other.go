// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix && !linux

package sidecar

import (
	"errors"
	"syscall"
)

// sysProcAttr puts the sidecar in its own process group. There is no
// parent-death signal outside Linux, and without an executable lookup
// ReapOrphan leaves a leftover sidecar running rather than risk killing
// a process that reused its PID.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

var errNoProcfs = errors.New("process executable lookup not supported on this platform")

func processExecutable(int) (string, error) {
	return "", errNoProcfs
}
