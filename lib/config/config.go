// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "COMPANION_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local builds.
	Development Environment = "development"
	// Production is for packaged installs.
	Production Environment = "production"
)

// Config is the master configuration for the companion shell.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Sidecar configures the supervised server process.
	Sidecar SidecarConfig `yaml:"sidecar"`

	// Probe configures local address discovery.
	Probe ProbeConfig `yaml:"probe"`

	// Bridge configures the local socket and state files.
	Bridge BridgeConfig `yaml:"bridge"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Unset fields leave the base value alone.
type ConfigOverrides struct {
	LogLevel string           `yaml:"log_level,omitempty"`
	Sidecar  *SidecarOverride `yaml:"sidecar,omitempty"`
	Probe    *ProbeConfig     `yaml:"probe,omitempty"`
	Bridge   *BridgeConfig    `yaml:"bridge,omitempty"`
}

// SidecarConfig configures the sidecar supervisor.
type SidecarConfig struct {
	// Binary is the sidecar executable. Empty means "server" next to
	// the shell executable, then "server" on PATH.
	Binary string `yaml:"binary"`

	// Port is the sidecar's HTTP port, used in the advertised URL and
	// by fetch. Default: 9090
	Port int `yaml:"port"`

	// PollInterval is how often the supervisor checks for commands.
	// Default: 500ms
	PollInterval string `yaml:"poll_interval"`

	// KillWait bounds the wait for a killed sidecar to be reaped.
	// Default: 1s
	KillWait string `yaml:"kill_wait"`

	// AutoStart posts Start when the shell starts. Off by default, so
	// a fresh shell is Idle and the first toggle starts the sidecar.
	// Default: false
	AutoStart bool `yaml:"auto_start"`
}

// SidecarOverride is SidecarConfig for override sections. AutoStart
// is a pointer so that an override which omits it keeps the base
// value.
type SidecarOverride struct {
	Binary       string `yaml:"binary,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	PollInterval string `yaml:"poll_interval,omitempty"`
	KillWait     string `yaml:"kill_wait,omitempty"`
	AutoStart    *bool  `yaml:"auto_start,omitempty"`
}

// ProbeConfig configures the outbound address probe.
type ProbeConfig struct {
	// Target is the "host:port" the probe routes toward. No traffic
	// is sent to it. Default: 8.8.8.8:80
	Target string `yaml:"target"`
}

// BridgeConfig configures the bridge socket and the sidecar state
// file.
type BridgeConfig struct {
	// SocketPath is where the shell serves the bridge protocol.
	// Default: $XDG_RUNTIME_DIR/companion/shell.sock
	SocketPath string `yaml:"socket_path"`

	// StatePath records the running sidecar for orphan reaping.
	// Default: $XDG_STATE_HOME/companion/sidecar.cbor
	StatePath string `yaml:"state_path"`
}

// Default returns the default configuration. Loading a file starts
// from these values.
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Sidecar: SidecarConfig{
			Binary:       "",
			Port:         9090,
			PollInterval: "500ms",
			KillWait:     "1s",
		},
		Probe: ProbeConfig{
			Target: "8.8.8.8:80",
		},
		Bridge: BridgeConfig{
			SocketPath: DefaultSocketPath(),
			StatePath:  defaultStatePath(),
		},
	}
}

// DefaultSocketPath returns the bridge socket path used when none is
// configured: companion/shell.sock under $XDG_RUNTIME_DIR, or under a
// per-user directory in the system temporary directory when that is
// unset.
func DefaultSocketPath() string {
	runtimeDirectory := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDirectory == "" {
		runtimeDirectory = filepath.Join(os.TempDir(), "companion-"+strconv.Itoa(os.Getuid()))
		return filepath.Join(runtimeDirectory, "shell.sock")
	}
	return filepath.Join(runtimeDirectory, "companion", "shell.sock")
}

func defaultStatePath() string {
	stateDirectory := os.Getenv("XDG_STATE_HOME")
	if stateDirectory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "companion-"+strconv.Itoa(os.Getuid()), "sidecar.cbor")
		}
		stateDirectory = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDirectory, "companion", "sidecar.cbor")
}

// Load loads the file named by COMPANION_CONFIG, or returns the
// defaults when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults, applies
// the matching environment section, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{LogLevel: "warn"}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if sidecar := overrides.Sidecar; sidecar != nil {
		if sidecar.Binary != "" {
			c.Sidecar.Binary = sidecar.Binary
		}
		if sidecar.Port != 0 {
			c.Sidecar.Port = sidecar.Port
		}
		if sidecar.PollInterval != "" {
			c.Sidecar.PollInterval = sidecar.PollInterval
		}
		if sidecar.KillWait != "" {
			c.Sidecar.KillWait = sidecar.KillWait
		}
		if sidecar.AutoStart != nil {
			c.Sidecar.AutoStart = *sidecar.AutoStart
		}
	}

	if overrides.Probe != nil && overrides.Probe.Target != "" {
		c.Probe.Target = overrides.Probe.Target
	}

	if bridge := overrides.Bridge; bridge != nil {
		if bridge.SocketPath != "" {
			c.Bridge.SocketPath = bridge.SocketPath
		}
		if bridge.StatePath != "" {
			c.Bridge.StatePath = bridge.StatePath
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Sidecar.Binary = expandVars(c.Sidecar.Binary, vars)
	c.Bridge.SocketPath = expandVars(c.Bridge.SocketPath, vars)
	c.Bridge.StatePath = expandVars(c.Bridge.StatePath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, looking in
// vars first and then the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.Sidecar.Port < 1 || c.Sidecar.Port > 65535 {
		errs = append(errs, fmt.Errorf("sidecar.port must be between 1 and 65535, got %d", c.Sidecar.Port))
	}
	if _, err := c.PollInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.KillWait(); err != nil {
		errs = append(errs, err)
	}

	if _, _, err := net.SplitHostPort(c.Probe.Target); err != nil {
		errs = append(errs, fmt.Errorf("probe.target must be host:port: %w", err))
	}

	if c.Bridge.SocketPath == "" {
		errs = append(errs, fmt.Errorf("bridge.socket_path is required"))
	}
	if c.Bridge.StatePath == "" {
		errs = append(errs, fmt.Errorf("bridge.state_path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error: got %q", c.LogLevel)
	}
	return level, nil
}

// PollInterval parses Sidecar.PollInterval.
func (c *Config) PollInterval() (time.Duration, error) {
	return positiveDuration("sidecar.poll_interval", c.Sidecar.PollInterval)
}

// KillWait parses Sidecar.KillWait.
func (c *Config) KillWait() (time.Duration, error) {
	return positiveDuration("sidecar.kill_wait", c.Sidecar.KillWait)
}

func positiveDuration(field, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}
