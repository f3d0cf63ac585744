// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/bureau-foundation/companion/lib/netutil"
)

// TokenEnvironmentVariable carries the session token into the sidecar.
const TokenEnvironmentVariable = "TOKEN"

// eventBufferSize is how many stdio events may queue before the
// stream readers block on the pump.
const eventBufferSize = 64

// Child is a running sidecar process. The supervisor owns it
// exclusively from spawn until kill.
type Child interface {
	// Pid returns the process ID.
	Pid() int

	// Binary returns the executable path the child was started from.
	Binary() string

	// Events returns the child's stdio event stream. It carries
	// stdout and stderr lines followed by one EventExit, and is
	// closed after the child has been reaped.
	Events() <-chan Event

	// Kill terminates the child immediately. Killing a child that has
	// already exited is not an error.
	Kill() error

	// Done is closed once the child has been reaped.
	Done() <-chan struct{}
}

// Spawner starts sidecar processes for the supervisor.
type Spawner interface {
	// Spawn starts a new child whose environment includes
	// TOKEN=token.
	Spawn(token string) (Child, error)
}

// ExecSpawnerConfig configures an ExecSpawner.
type ExecSpawnerConfig struct {
	// Binary is the sidecar executable. Use ResolveBinary to find the
	// packaged binary.
	Binary string

	// Args are passed to the sidecar after the program name.
	Args []string

	// Env is appended to the shell's own environment, before TOKEN.
	Env []string

	// Logger receives spawn and stream diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// ExecSpawner starts the sidecar as an operating system process.
type ExecSpawner struct {
	binary string
	digest string
	args   []string
	env    []string
	logger *slog.Logger
}

// NewExecSpawner validates the sidecar binary and records its digest.
func NewExecSpawner(config ExecSpawnerConfig) (*ExecSpawner, error) {
	if config.Binary == "" {
		return nil, fmt.Errorf("sidecar binary is required")
	}
	if err := validateBinary(config.Binary); err != nil {
		return nil, err
	}

	digest, err := DigestFile(config.Binary)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ExecSpawner{
		binary: config.Binary,
		digest: digest,
		args:   config.Args,
		env:    config.Env,
		logger: logger,
	}, nil
}

// Binary returns the sidecar executable path.
func (s *ExecSpawner) Binary() string { return s.binary }

// Digest returns the hex BLAKE3 digest of the sidecar executable as
// it was when the spawner was created.
func (s *ExecSpawner) Digest() string { return s.digest }

// Spawn starts the sidecar with stdout and stderr piped into the
// child's event stream.
func (s *ExecSpawner) Spawn(token string) (Child, error) {
	cmd := exec.Command(s.binary, s.args...)
	cmd.Env = append(append(os.Environ(), s.env...), TokenEnvironmentVariable+"="+token)
	cmd.SysProcAttr = sysProcAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting sidecar %s: %w", s.binary, err)
	}

	child := &execChild{
		cmd:    cmd,
		binary: s.binary,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		logger: s.logger.With("pid", cmd.Process.Pid),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go child.readStream(stdout, EventStdout, "stdout", &readers)
	go child.readStream(stderr, EventStderr, "stderr", &readers)

	// Wait closes the pipes, so it must only run after both readers
	// have hit end-of-stream.
	go func() {
		readers.Wait()
		waitError := cmd.Wait()
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		child.events <- Event{Kind: EventExit, ExitCode: exitCode, Err: waitError}
		close(child.events)
		close(child.done)
	}()

	return child, nil
}

type execChild struct {
	cmd    *exec.Cmd
	binary string
	events chan Event
	done   chan struct{}
	logger *slog.Logger
}

func (c *execChild) Pid() int              { return c.cmd.Process.Pid }
func (c *execChild) Binary() string        { return c.binary }
func (c *execChild) Events() <-chan Event  { return c.events }
func (c *execChild) Done() <-chan struct{} { return c.done }

func (c *execChild) Kill() error {
	groupError := killProcessGroup(c.cmd.Process.Pid)
	if groupError != nil {
		c.logger.Warn("killing sidecar process group failed", "error", groupError)
	}

	err := c.cmd.Process.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if groupError == nil {
		// The group kill already reached it; the process is exiting.
		return nil
	}
	return fmt.Errorf("killing sidecar %d: %w", c.cmd.Process.Pid, err)
}

// readStream turns one pipe into line events. Lines of any length are
// accepted; a final line without a terminator is still delivered.
func (c *execChild) readStream(pipe io.Reader, kind EventKind, name string, readers *sync.WaitGroup) {
	defer readers.Done()

	reader := bufio.NewReader(pipe)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.events <- Event{Kind: kind, Data: trimLineEnding(line)}
		}
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				c.logger.Warn("reading sidecar output failed", "stream", name, "error", err)
			}
			return
		}
	}
}
