// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/companion/lib/codec"
)

// State is the on-disk record of a running sidecar. It exists while a
// child is alive and is removed when the supervisor kills it, so a
// record found at startup means the previous shell died with its
// sidecar still running.
type State struct {
	// PID is the sidecar's process ID, which is also its process
	// group ID.
	PID int `cbor:"pid"`

	// Binary is the executable the sidecar was started from. Used to
	// avoid killing an unrelated process that reused the PID.
	Binary string `cbor:"binary"`

	// Digest is the hex BLAKE3 digest of Binary when it was spawned.
	Digest string `cbor:"digest,omitempty"`

	// ShellPID is the process ID of the shell that spawned it.
	ShellPID int `cbor:"shell_pid"`

	// StartedAt is when the sidecar was spawned.
	StartedAt time.Time `cbor:"started_at"`
}

// WriteState atomically writes the state file: temporary file, fsync,
// rename. The parent directory is created if needed.
func WriteState(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling sidecar state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}
	return nil
}

// ReadState reads the state file. A missing file returns an error
// wrapping os.ErrNotExist.
func ReadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing sidecar state %s: %w", path, err)
	}
	return state, nil
}

// lookupExecutable reports the executable a running PID was started
// from. Replaced in tests.
var lookupExecutable = processExecutable

// ClearState removes the state file. A missing file is not an error.
func ClearState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing sidecar state: %w", err)
	}
	return nil
}

// ReapOrphan kills a sidecar left behind by a previous shell. It
// returns true when a process was killed.
//
// Nothing is killed when there is no record, when the recorded shell
// is still running (another shell instance owns that sidecar), when
// the recorded PID is gone, when the PID now belongs to a different
// executable, or when the PID's executable cannot be determined. The
// record is removed in every case except the second.
func ReapOrphan(path string, logger *slog.Logger) (bool, error) {
	state, err := ReadState(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		// A corrupt record cannot be acted on; drop it so it does not
		// fail every startup.
		ClearState(path)
		return false, err
	}

	if state.ShellPID != os.Getpid() && processAlive(state.ShellPID) {
		logger.Warn("sidecar state belongs to a running shell, leaving it alone",
			"shell_pid", state.ShellPID,
			"pid", state.PID,
		)
		return false, nil
	}

	if !processAlive(state.PID) {
		return false, ClearState(path)
	}

	recorded := state.Binary
	if resolved, err := filepath.EvalSymlinks(recorded); err == nil {
		recorded = resolved
	}
	executable, err := lookupExecutable(state.PID)
	if err != nil {
		logger.Warn("cannot verify recorded sidecar pid, not killing",
			"pid", state.PID,
			"binary", state.Binary,
			"error", err,
		)
		return false, ClearState(path)
	}
	if executable != recorded {
		logger.Info("recorded sidecar pid now belongs to another program, not killing",
			"pid", state.PID,
			"recorded_binary", state.Binary,
			"executable", executable,
		)
		return false, ClearState(path)
	}

	logger.Warn("killing orphaned sidecar from a previous shell",
		"pid", state.PID,
		"binary", state.Binary,
		"started_at", state.StartedAt,
	)
	if err := killProcessGroup(state.PID); err != nil {
		return false, fmt.Errorf("killing orphaned sidecar %d: %w", state.PID, err)
	}
	return true, ClearState(path)
}
