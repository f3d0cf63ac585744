// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/companion/lib/config"
	"github.com/bureau-foundation/companion/lib/ipc"
	"github.com/bureau-foundation/companion/lib/process"
	"github.com/bureau-foundation/companion/lib/session"
	"github.com/bureau-foundation/companion/lib/shellbridge"
	"github.com/bureau-foundation/companion/lib/sidecar"
	"github.com/bureau-foundation/companion/lib/version"
)

// shutdownTimeout bounds ending the supervisor on exit. The kill wait
// is one second by default, so this leaves room for a slow reap.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		socketPath  string
		sidecarPath string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("companion-shell", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to companion.yaml (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flagSet.StringVar(&socketPath, "socket", "", "bridge socket path (overrides bridge.socket_path)")
	flagSet.StringVar(&sidecarPath, "sidecar", "", "sidecar executable (overrides sidecar.binary)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "companion-shell %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Bridge.SocketPath = socketPath
	}
	if sidecarPath != "" {
		cfg.Sidecar.Binary = sidecarPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runShell(ctx, shellOptions{
		config: cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

type shellOptions struct {
	config *config.Config
	logger *slog.Logger

	// stdout and stderr receive the sidecar's relayed output.
	stdout io.Writer
	stderr io.Writer

	// ready, when set, is called with the bridge once the socket
	// server has been started.
	ready func(*shellbridge.Bridge)
}

// runShell runs the shell until ctx is cancelled or a quit request
// arrives, then shuts the sidecar down.
func runShell(ctx context.Context, options shellOptions) error {
	cfg := options.config
	logger := options.logger

	logger.Info("companion shell starting",
		"version", version.Info(),
		"pid", os.Getpid(),
		"environment", cfg.Environment,
	)

	killed, err := sidecar.ReapOrphan(cfg.Bridge.StatePath, logger)
	if err != nil {
		logger.Warn("checking for an orphaned sidecar failed", "path", cfg.Bridge.StatePath, "error", err)
	} else if killed {
		logger.Info("killed sidecar left by a previous shell")
	}

	// The binary is resolved again on every start, so a missing sidecar
	// only fails Start and the bridge keeps answering.
	spawner := sidecar.NewResolvingSpawner(sidecar.ResolvingSpawnerConfig{
		Binary: cfg.Sidecar.Binary,
		Logger: logger,
	})
	if binary, err := spawner.Check(); err != nil {
		logger.Warn("sidecar not available yet, starts will fail until it is installed", "error", err)
	} else {
		logger.Info("sidecar resolved", "binary", binary)
	}

	shellSession, err := session.New()
	if err != nil {
		return err
	}

	pollInterval, _ := cfg.PollInterval()
	killWait, _ := cfg.KillWait()
	supervisor, err := sidecar.New(sidecar.Config{
		Token:        shellSession.Token(),
		Spawner:      spawner,
		PollInterval: pollInterval,
		KillWait:     killWait,
		StatePath:    cfg.Bridge.StatePath,
		Stdout:       options.stdout,
		Stderr:       options.stderr,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	// The loop ends through the shutdown hook, not through ctx, so the
	// sidecar is always killed by the same path.
	go supervisor.Run(context.Background())

	bridge, err := shellbridge.New(shellbridge.Config{
		Session:     shellSession,
		Supervisor:  supervisor,
		Port:        cfg.Sidecar.Port,
		ProbeTarget: cfg.Probe.Target,
		Version:     version.Info(),
		Logger:      logger,
	})
	if err != nil {
		return errors.Join(err, shutdown(nil, supervisor, logger))
	}

	if cfg.Sidecar.AutoStart {
		if err := supervisor.Post(sidecar.CommandStart); err != nil {
			logger.Error("auto-starting sidecar failed", "error", err)
		}
	}

	serveContext, quit := context.WithCancel(ctx)
	defer quit()

	server := ipc.NewSocketServer(cfg.Bridge.SocketPath, logger)
	bridge.Register(server, quit)

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(serveContext)
	}()

	if options.ready != nil {
		options.ready(bridge)
	}

	var serveError error
	select {
	case <-serveContext.Done():
		logger.Info("shutdown requested", "reason", context.Cause(serveContext))
		serveError = <-served
	case serveError = <-served:
		if serveError != nil {
			serveError = fmt.Errorf("bridge socket: %w", serveError)
		}
	}
	quit()

	return errors.Join(serveError, shutdown(bridge, supervisor, logger))
}

// shutdown fires the shutdown hook. bridge may be nil when startup
// failed before it was built; the supervisor is then ended directly.
func shutdown(bridge *shellbridge.Bridge, supervisor *sidecar.Supervisor, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if bridge != nil {
		if err := bridge.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down sidecar: %w", err)
		}
		return nil
	}

	if err := supervisor.End(); err != nil && !errors.Is(err, sidecar.ErrStopped) {
		return fmt.Errorf("ending sidecar supervisor: %w", err)
	}
	select {
	case <-supervisor.Done():
	case <-ctx.Done():
		logger.Error("sidecar supervisor did not stop in time")
		return ctx.Err()
	}
	return nil
}
