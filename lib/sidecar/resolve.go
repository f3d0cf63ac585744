// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"fmt"
	"log/slog"
	"sync"
)

// ResolvingSpawnerConfig configures a ResolvingSpawner.
type ResolvingSpawnerConfig struct {
	// Binary is the configured sidecar path. Empty means look for Name
	// next to the shell executable, then on PATH.
	Binary string

	// Name defaults to DefaultBinaryName.
	Name string

	// Args and Env are passed through to the ExecSpawner.
	Args []string
	Env  []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ResolvingSpawner finds and validates the sidecar executable on every
// spawn. A missing or broken binary fails that Start only; the shell
// keeps serving and a later Start succeeds once the binary is in
// place.
type ResolvingSpawner struct {
	config ResolvingSpawnerConfig

	mu     sync.Mutex
	digest string
}

// NewResolvingSpawner creates a spawner. It does not look for the
// binary; use Check to report its state at startup.
func NewResolvingSpawner(config ResolvingSpawnerConfig) *ResolvingSpawner {
	if config.Name == "" {
		config.Name = DefaultBinaryName
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &ResolvingSpawner{config: config}
}

// Check resolves and validates the binary without spawning it.
func (s *ResolvingSpawner) Check() (string, error) {
	binary, err := ResolveBinary(s.config.Binary, s.config.Name)
	if err != nil {
		return "", fmt.Errorf("resolving sidecar: %w", err)
	}
	return binary, nil
}

// Digest returns the digest of the binary used by the last successful
// spawn, or "" before the first one.
func (s *ResolvingSpawner) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digest
}

// Spawn resolves the binary, hashes it and starts it.
func (s *ResolvingSpawner) Spawn(token string) (Child, error) {
	binary, err := s.Check()
	if err != nil {
		return nil, err
	}
	spawner, err := NewExecSpawner(ExecSpawnerConfig{
		Binary: binary,
		Args:   s.config.Args,
		Env:    s.config.Env,
		Logger: s.config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("preparing sidecar: %w", err)
	}

	child, err := spawner.Spawn(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.digest = spawner.Digest()
	s.mu.Unlock()
	return child, nil
}
