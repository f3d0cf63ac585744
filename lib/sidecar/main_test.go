// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// helperModeVariable switches the test binary into a stand-in sidecar.
// Tests spawn os.Executable() with this set instead of a real server.
const helperModeVariable = "COMPANION_TEST_SIDECAR"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperModeVariable); mode != "" {
		runHelperSidecar(mode)
		return
	}
	os.Exit(m.Run())
}

// runHelperSidecar behaves like a minimal sidecar:
//
//	block: print the token, then wait to be killed
//	exit:  print a line on each stream, some invalid UTF-8, exit 3
func runHelperSidecar(mode string) {
	switch mode {
	case "block":
		fmt.Printf("token=%s\n", os.Getenv(TokenEnvironmentVariable))
		fmt.Fprintln(os.Stderr, "listening")
		time.Sleep(time.Hour)
		os.Exit(0)
	case "exit":
		fmt.Println("stdout line")
		fmt.Fprintln(os.Stderr, "stderr line")
		os.Stdout.Write([]byte("bad \xff byte\r\n"))
		os.Stdout.Write([]byte("no newline"))
		os.Exit(3)
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		os.Exit(2)
	}
}

// helperBinary returns the test binary's own path for use as a sidecar.
func helperBinary(t *testing.T) string {
	t.Helper()
	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return executable
}

// newHelperSpawner returns an ExecSpawner that runs the test binary in
// the given helper mode.
func newHelperSpawner(t *testing.T, mode string) *ExecSpawner {
	t.Helper()
	spawner, err := NewExecSpawner(ExecSpawnerConfig{
		Binary: helperBinary(t),
		Env:    []string{helperModeVariable + "=" + mode},
	})
	if err != nil {
		t.Fatalf("NewExecSpawner: %v", err)
	}
	return spawner
}
