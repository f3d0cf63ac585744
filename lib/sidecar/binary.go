// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// DefaultBinaryName is the name the sidecar is packaged under, next to
// the shell executable.
const DefaultBinaryName = "server"

// ResolveBinary finds the sidecar executable. A configured path wins;
// otherwise name is looked for next to the running executable (the
// packaged layout) and then on PATH. The result is validated to be a
// regular executable file.
func ResolveBinary(configured, name string) (string, error) {
	if configured != "" {
		absolute, err := filepath.Abs(configured)
		if err != nil {
			return "", fmt.Errorf("sidecar path %q: %w", configured, err)
		}
		return absolute, validateBinary(absolute)
	}

	if executable, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(executable), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, validateBinary(candidate)
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("sidecar %q not found next to the shell executable or on PATH", name)
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("sidecar path %q: %w", path, err)
	}
	return absolute, validateBinary(absolute)
}

// validateBinary checks that path is a regular, executable file.
func validateBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sidecar at %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("sidecar at %q is not a regular file (mode %s)", path, info.Mode())
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("sidecar at %q is not executable (mode %s)", path, info.Mode())
	}
	return nil
}

// DigestFile returns the hex BLAKE3-256 digest of the file at path,
// streamed so memory use does not depend on the binary's size.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
