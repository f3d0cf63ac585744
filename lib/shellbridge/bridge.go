// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shellbridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/companion/lib/netutil"
	"github.com/bureau-foundation/companion/lib/session"
	"github.com/bureau-foundation/companion/lib/sidecar"
)

// DefaultPort is the sidecar's fixed HTTP port.
const DefaultPort = 9090

// ErrNoAddress is returned by Fetch when the local address cannot be
// determined.
var ErrNoAddress = errors.New("no server address")

// Supervisor is the part of *sidecar.Supervisor the bridge uses.
type Supervisor interface {
	Live() (bool, error)
	Toggle() (bool, error)
	Info() (sidecar.Info, error)
	End() error
	Done() <-chan struct{}
}

// ProbeFunc returns the local IPv4 address used to reach target.
type ProbeFunc func(target string) (string, error)

// Config configures a Bridge.
type Config struct {
	// Session supplies the token embedded in the server URL. Required.
	Session *session.Session

	// Supervisor owns the sidecar. Required.
	Supervisor Supervisor

	// Port is the sidecar's HTTP port. Defaults to DefaultPort.
	Port int

	// ProbeTarget is the address the outbound probe routes toward.
	// Defaults to netutil.DefaultProbeTarget.
	ProbeTarget string

	// Probe defaults to netutil.OutboundIPv4.
	Probe ProbeFunc

	// HTTPClient is used by Fetch. Defaults to a client that accepts
	// any TLS certificate.
	HTTPClient *http.Client

	// Version is reported by Info.
	Version string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Bridge implements the UI-facing operations.
type Bridge struct {
	session     *session.Session
	supervisor  Supervisor
	port        int
	probeTarget string
	probe       ProbeFunc
	client      *http.Client
	version     string
	logger      *slog.Logger
}

// New creates a Bridge.
func New(config Config) (*Bridge, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if config.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	bridge := &Bridge{
		session:     config.Session,
		supervisor:  config.Supervisor,
		port:        config.Port,
		probeTarget: config.ProbeTarget,
		probe:       config.Probe,
		client:      config.HTTPClient,
		version:     config.Version,
		logger:      config.Logger,
	}
	if bridge.port == 0 {
		bridge.port = DefaultPort
	}
	if bridge.port < 0 || bridge.port > 65535 {
		return nil, fmt.Errorf("port %d out of range", bridge.port)
	}
	if bridge.probeTarget == "" {
		bridge.probeTarget = netutil.DefaultProbeTarget
	}
	if bridge.probe == nil {
		bridge.probe = netutil.OutboundIPv4
	}
	if bridge.logger == nil {
		bridge.logger = slog.Default()
	}
	if bridge.client == nil {
		client, err := newInsecureClient()
		if err != nil {
			return nil, err
		}
		bridge.client = client
	}
	return bridge, nil
}

// newInsecureClient builds the forwarding client. The sidecar may serve
// a self-signed certificate, so verification is off.
func newInsecureClient() (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("creating HTTP client: default transport is %T, not *http.Transport", http.DefaultTransport)
	}
	transport := base.Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // sidecar uses a self-signed certificate
	return &http.Client{Transport: transport}, nil
}

// ServerAddress returns the advertised URL of the sidecar,
// "http://<ipv4>:<port>?token=<token>". It returns false when the
// local address cannot be determined; the probe failure is logged.
func (b *Bridge) ServerAddress() (string, bool) {
	ip, err := b.probe(b.probeTarget)
	if err != nil {
		b.logger.Error("determining local address failed", "target", b.probeTarget, "error", err)
		return "", false
	}
	return fmt.Sprintf("http://%s:%d?token=%s", ip, b.port, b.session.Token()), true
}

// ServerStatus reports the liveness flag.
func (b *Bridge) ServerStatus() (bool, error) {
	return b.supervisor.Live()
}

// ToggleServer requests the opposite of the current liveness flag and
// returns the new flag. The flag changes immediately; the sidecar is
// started or killed on the supervisor's next poll.
func (b *Bridge) ToggleServer() (bool, error) {
	live, err := b.supervisor.Toggle()
	if err != nil {
		return live, err
	}
	b.logger.Info("sidecar toggled", "live", live)
	return live, nil
}

// Info describes the current sidecar.
type Info struct {
	sidecar.Info

	// Address is the advertised URL, empty when unavailable.
	Address string

	// Version is the shell's build version.
	Version string
}

// Info returns the supervisor's view of the sidecar plus the
// advertised address.
func (b *Bridge) Info() (Info, error) {
	supervisorInfo, err := b.supervisor.Info()
	if err != nil {
		return Info{}, err
	}
	address, _ := b.ServerAddress()
	return Info{Info: supervisorInfo, Address: address, Version: b.version}, nil
}

// Shutdown ends the supervisor and waits, bounded by ctx, for its loop
// to exit, which kills any running sidecar. Calling Shutdown on a
// supervisor that has already ended is not an error.
func (b *Bridge) Shutdown(ctx context.Context) error {
	if err := b.supervisor.End(); err != nil && !errors.Is(err, sidecar.ErrStopped) {
		return fmt.Errorf("ending sidecar supervisor: %w", err)
	}

	select {
	case <-b.supervisor.Done():
		b.logger.Info("sidecar supervisor shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sidecar supervisor: %w", ctx.Err())
	}
}
