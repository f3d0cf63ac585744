// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"os"
	"strconv"
	"syscall"
)

// sysProcAttr puts the sidecar in its own process group and asks the
// kernel to SIGKILL it when the spawning thread dies. The supervisor
// loop locks itself to its OS thread, so that thread lives exactly as
// long as the loop and the shell process.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// processExecutable returns the executable path of a running process.
func processExecutable(pid int) (string, error) {
	return os.Readlink("/proc/" + strconv.Itoa(pid) + "/exe")
}
