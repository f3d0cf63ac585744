// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/bureau-foundation/companion/lib/clock"
)

const (
	// DefaultPollInterval is how often the loop checks for a command.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultKillWait bounds how long the loop waits for a killed
	// child to be reaped before moving on.
	DefaultKillWait = time.Second

	// DefaultQueueSize is the command channel's capacity.
	DefaultQueueSize = 64
)

var (
	// ErrStopped is returned when posting to a supervisor whose loop
	// has ended.
	ErrStopped = errors.New("sidecar supervisor has stopped")

	// ErrQueueFull is returned when the command channel is at
	// capacity. Posting never blocks while the state lock is held.
	ErrQueueFull = errors.New("sidecar command queue is full")
)

// Config configures a Supervisor.
type Config struct {
	// Token is passed to every spawned child as TOKEN. Required.
	Token string

	// Spawner starts children. Required.
	Spawner Spawner

	// Clock drives the poll ticker and the post-kill wait. Defaults to
	// clock.Real().
	Clock clock.Clock

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// KillWait defaults to DefaultKillWait.
	KillWait time.Duration

	// QueueSize defaults to DefaultQueueSize.
	QueueSize int

	// StatePath is where the running child is recorded for orphan
	// reaping. Empty disables the record.
	StatePath string

	// Stdout and Stderr receive the child's output lines. Default to
	// the shell's own stdout and stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Info describes the supervisor's current child.
type Info struct {
	// Live is the liveness flag, which after Toggle reflects the
	// requested state rather than the actual one.
	Live bool

	// PID, Binary and StartedAt describe the running child and are
	// zero when there is none.
	PID       int
	Binary    string
	StartedAt time.Time

	// Digest is the spawner's binary digest, when it reports one.
	Digest string
}

// digester is implemented by spawners that know the digest of the
// binary they run, such as ExecSpawner.
type digester interface {
	Digest() string
}

// Supervisor owns the sidecar child process. See the package
// documentation for the state machine.
type Supervisor struct {
	token        string
	spawner      Spawner
	clock        clock.Clock
	pollInterval time.Duration
	killWait     time.Duration
	statePath    string
	stdout       io.Writer
	stderr       io.Writer
	logger       *slog.Logger

	commands chan Command
	done     chan struct{}

	// end is closed by End. The loop checks it before the command
	// queue on every tick, so a backlog cannot delay shutdown.
	end chan struct{}

	// mu guards everything below. Only the loop goroutine writes
	// child, reaping and startedAt; live is also written by Toggle.
	mu        sync.Mutex
	live      bool
	child     Child
	startedAt time.Time
	ending    bool
	stopped   bool
	failure   error

	// reaping is a killed child that had not been reaped when the kill
	// wait ran out. No new child is spawned until it is.
	reaping Child
}

// New creates a supervisor in the Idle state. Call Run to start the
// loop.
func New(config Config) (*Supervisor, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("session token is required")
	}
	if config.Spawner == nil {
		return nil, fmt.Errorf("spawner is required")
	}

	supervisor := &Supervisor{
		token:        config.Token,
		spawner:      config.Spawner,
		clock:        config.Clock,
		pollInterval: config.PollInterval,
		killWait:     config.KillWait,
		statePath:    config.StatePath,
		stdout:       config.Stdout,
		stderr:       config.Stderr,
		logger:       config.Logger,
		done:         make(chan struct{}),
		end:          make(chan struct{}),
	}
	if supervisor.clock == nil {
		supervisor.clock = clock.Real()
	}
	if supervisor.pollInterval <= 0 {
		supervisor.pollInterval = DefaultPollInterval
	}
	if supervisor.killWait <= 0 {
		supervisor.killWait = DefaultKillWait
	}
	if supervisor.stdout == nil {
		supervisor.stdout = os.Stdout
	}
	if supervisor.stderr == nil {
		supervisor.stderr = os.Stderr
	}
	if supervisor.logger == nil {
		supervisor.logger = slog.Default()
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	supervisor.commands = make(chan Command, queueSize)

	return supervisor, nil
}

// Run is the supervisor loop. It returns after handling CommandEnd,
// after End is called, or when ctx is cancelled (which is handled as
// End). Run must be called at most once.
//
// The loop locks its goroutine to an OS thread for its whole life.
// Children are spawned from that thread, which on Linux ties their
// parent-death signal to the loop.
func (s *Supervisor) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer close(s.done)
	defer s.recoverFailure()

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("sidecar supervisor started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor context cancelled, ending", "reason", ctx.Err())
			s.handle(CommandEnd)
			return
		case <-ticker.C:
		}

		select {
		case <-s.end:
			s.handle(CommandEnd)
			return
		default:
		}

		select {
		case command := <-s.commands:
			if !s.handle(command) {
				return
			}
		default:
		}
	}
}

// Done is closed when Run has returned.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Post queues a command for the loop without blocking.
func (s *Supervisor) Post(command Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postLocked(command)
}

// End asks the loop to finish. It never blocks: the loop handles it at
// its next tick ahead of any queued commands, which are discarded. Use
// Done to wait for the loop. Once End has been called, Post, Toggle
// and further End calls return ErrStopped.
func (s *Supervisor) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ending {
		return ErrStopped
	}
	s.ending = true
	close(s.end)
	return nil
}

// Live returns the liveness flag.
func (s *Supervisor) Live() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return false, err
	}
	return s.live, nil
}

// Toggle requests the opposite of the current liveness flag and sets
// the flag to match before the loop acts on it. It returns the new
// flag value: true after posting Start, false after posting Stop.
func (s *Supervisor) Toggle() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return false, err
	}

	if s.live {
		if err := s.postLocked(CommandStop); err != nil {
			return true, err
		}
		s.live = false
		return false, nil
	}

	if err := s.postLocked(CommandStart); err != nil {
		return false, err
	}
	s.live = true
	return true, nil
}

// Info returns a snapshot of the liveness flag and the current child.
func (s *Supervisor) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return Info{}, err
	}
	info := Info{Live: s.live, Digest: s.spawnerDigest()}
	if s.child != nil {
		info.PID = s.child.Pid()
		info.Binary = s.child.Binary()
		info.StartedAt = s.startedAt
	}
	return info, nil
}

func (s *Supervisor) spawnerDigest() string {
	if d, ok := s.spawner.(digester); ok {
		return d.Digest()
	}
	return ""
}

func (s *Supervisor) usableLocked() error {
	if s.failure != nil {
		return fmt.Errorf("supervisor state unusable: %w", s.failure)
	}
	return nil
}

func (s *Supervisor) postLocked(command Command) error {
	if s.stopped || s.ending {
		return ErrStopped
	}
	select {
	case s.commands <- command:
		return nil
	default:
		return ErrQueueFull
	}
}

// handle applies one command. It returns false when the loop must end.
func (s *Supervisor) handle(command Command) bool {
	s.logger.Debug("handling sidecar command", "command", command)

	switch command {
	case CommandStart:
		s.start()
	case CommandStop:
		s.stop()
	case CommandEnd:
		s.stop()
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.logger.Info("sidecar supervisor ended")
		return false
	default:
		s.logger.Warn("ignoring unknown sidecar command", "command", command)
	}
	return true
}

// start spawns a child unless one is already running or a killed one
// is still being reaped. A failed or skipped spawn leaves the liveness
// flag as it was.
func (s *Supervisor) start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != nil {
		s.logger.Debug("sidecar already running", "pid", s.child.Pid())
		return
	}

	if s.reaping != nil {
		select {
		case <-s.reaping.Done():
			s.reaping = nil
		default:
			s.logger.Warn("previous sidecar not reaped yet, not starting another",
				"pid", s.reaping.Pid(),
			)
			return
		}
	}

	child, err := s.spawner.Spawn(s.token)
	if err != nil {
		s.logger.Error("spawning sidecar failed", "error", err)
		return
	}

	s.child = child
	s.live = true
	s.startedAt = s.clock.Now()

	s.logger.Info("sidecar started",
		"pid", child.Pid(),
		"binary", child.Binary(),
		"digest", s.spawnerDigest(),
	)

	go Pump(child.Events(), s.stdout, s.stderr, child.Pid(), s.logger)

	if s.statePath != "" {
		state := State{
			PID:       child.Pid(),
			Binary:    child.Binary(),
			Digest:    s.spawnerDigest(),
			ShellPID:  os.Getpid(),
			StartedAt: s.startedAt,
		}
		if err := WriteState(s.statePath, state); err != nil {
			s.logger.Warn("recording sidecar state failed", "path", s.statePath, "error", err)
		}
	}
}

// stop kills the current child, if any. The child is detached from
// the state under the lock; the kill and the bounded reap wait happen
// outside it so status reads are not held up.
func (s *Supervisor) stop() {
	s.mu.Lock()
	child := s.child
	if child == nil {
		s.mu.Unlock()
		return
	}
	s.child = nil
	s.live = false
	s.startedAt = time.Time{}
	s.mu.Unlock()

	s.kill(child)
}

func (s *Supervisor) kill(child Child) {
	pid := child.Pid()
	if err := child.Kill(); err != nil {
		s.logger.Error("killing sidecar failed", "pid", pid, "error", err)
	}

	select {
	case <-child.Done():
		s.logger.Info("sidecar stopped", "pid", pid)
	case <-s.clock.After(s.killWait):
		s.logger.Warn("sidecar not reaped after kill", "pid", pid, "waited", s.killWait)
		s.mu.Lock()
		s.reaping = child
		s.mu.Unlock()
	}

	if s.statePath != "" {
		if err := ClearState(s.statePath); err != nil {
			s.logger.Warn("clearing sidecar state failed", "path", s.statePath, "error", err)
		}
	}
}

// recoverFailure turns a panic in the loop into a recorded failure.
// Later operations report the supervisor as unusable instead of acting
// on state a panic may have left half-updated. The child, if any, is
// still killed so it does not outlive the loop.
func (s *Supervisor) recoverFailure() {
	recovered := recover()
	if recovered == nil {
		return
	}

	s.mu.Lock()
	s.failure = fmt.Errorf("supervisor loop panicked: %v", recovered)
	s.stopped = true
	child := s.child
	s.child = nil
	s.live = false
	s.mu.Unlock()

	s.logger.Error("sidecar supervisor loop panicked", "panic", recovered)

	if child != nil {
		if err := child.Kill(); err != nil {
			s.logger.Error("killing sidecar after panic failed", "pid", child.Pid(), "error", err)
		}
	}
}
