// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/companion/lib/codec"
	"github.com/bureau-foundation/companion/lib/ipc"
	"github.com/bureau-foundation/companion/lib/testutil"
)

// fakeShell serves the bridge actions from in-memory state.
type fakeShell struct {
	mu       sync.Mutex
	live     bool
	address  string
	fetches  []ipc.FetchRequest
	quitting bool
}

func (f *fakeShell) register(server *ipc.SocketServer) {
	server.Handle(ipc.ActionServerAddress, func(ctx context.Context, raw []byte) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return ipc.AddressResponse{Address: f.address}, nil
	})
	server.Handle(ipc.ActionServerStatus, func(ctx context.Context, raw []byte) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return ipc.StatusResponse{Live: f.live}, nil
	})
	server.Handle(ipc.ActionToggleServer, func(ctx context.Context, raw []byte) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.live = !f.live
		return ipc.StatusResponse{Live: f.live}, nil
	})
	server.Handle(ipc.ActionServerInfo, func(ctx context.Context, raw []byte) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		info := ipc.ServerInfo{Live: f.live, Version: "test"}
		if f.live {
			info.PID = 4242
			info.Binary = "/opt/companion/server"
			info.StartedAt = "2026-10-18T09:00:00Z"
		}
		return info, nil
	})
	server.Handle(ipc.ActionFetch, func(ctx context.Context, raw []byte) (any, error) {
		var request ipc.FetchRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fetches = append(f.fetches, request)
		if request.URL == "broken" {
			return nil, errors.New("executing request GET broken: connection refused")
		}
		return ipc.FetchResponse{Body: `{"ok":true}`}, nil
	})
	server.Handle(ipc.ActionQuit, func(ctx context.Context, raw []byte) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.quitting = true
		return nil, nil
	})
}

// startFakeShell serves a fakeShell and points COMPANION_SOCKET at it.
func startFakeShell(t *testing.T) *fakeShell {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "shell.sock")
	shell := &fakeShell{address: "http://10.0.0.5:9090?token=abc"}

	server := ipc.NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	shell.register(server)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	testutil.Eventually(t, 5*time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "socket %s appears", socketPath)

	t.Setenv(SocketEnvironmentVariable, socketPath)
	return shell
}

// execute runs the CLI and returns stdout, stderr and the error.
func execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := root(context.Background(), &stdout, &stderr).Execute(args)
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

func TestAddress(t *testing.T) {
	startFakeShell(t)

	stdout, _, err := execute("address")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "http://10.0.0.5:9090?token=abc\n" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = execute("address", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != `{"address":"http://10.0.0.5:9090?token=abc"}`+"\n" {
		t.Errorf("json stdout = %q", stdout)
	}
}

func TestAddressUnavailable(t *testing.T) {
	shell := startFakeShell(t)
	shell.mu.Lock()
	shell.address = ""
	shell.mu.Unlock()

	stdout, _, err := execute("address")
	if exitCode(err) != 1 {
		t.Errorf("err = %v, want exit code 1", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want nothing", stdout)
	}
}

func TestStatusAndToggle(t *testing.T) {
	startFakeShell(t)

	stdout, _, err := execute("status")
	if exitCode(err) != 1 || stdout != "stopped\n" {
		t.Errorf("status = %q, %v; want stopped with exit 1", stdout, err)
	}

	stdout, _, err = execute("toggle")
	if err != nil || stdout != "live\n" {
		t.Errorf("toggle = %q, %v; want live", stdout, err)
	}

	stdout, _, err = execute("status")
	if err != nil || stdout != "live\n" {
		t.Errorf("status = %q, %v; want live", stdout, err)
	}

	stdout, _, err = execute("toggle", "--json")
	if err != nil || stdout != `{"live":false}`+"\n" {
		t.Errorf("toggle --json = %q, %v", stdout, err)
	}
}

func TestInfo(t *testing.T) {
	shell := startFakeShell(t)
	shell.mu.Lock()
	shell.live = true
	shell.mu.Unlock()

	stdout, _, err := execute("info")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"state:", "live", "pid:", "4242", "/opt/companion/server", "2026-10-18T09:00:00Z"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("info output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute("info", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `"pid":4242`) || !strings.Contains(stdout, `"version":"test"`) {
		t.Errorf("info --json = %q", stdout)
	}
}

func TestFetch(t *testing.T) {
	shell := startFakeShell(t)

	stdout, _, err := execute("fetch", "api/settings", "--token", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != `{"ok":true}`+"\n" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = execute("fetch", "api/settings", "-X", "post", "--body", `{"a":1}`, "--token", "secret")
	if err != nil {
		t.Fatal(err)
	}

	shell.mu.Lock()
	defer shell.mu.Unlock()
	if len(shell.fetches) != 2 {
		t.Fatalf("fetches = %d, want 2", len(shell.fetches))
	}
	first := shell.fetches[0]
	if first.URL != "api/settings" || first.Method != "GET" || first.Token != "secret" || first.Body != nil {
		t.Errorf("first fetch = %+v", first)
	}
	second := shell.fetches[1]
	if second.Method != "post" || second.Body == nil || *second.Body != `{"a":1}` {
		t.Errorf("second fetch = %+v", second)
	}
}

func TestFetchBodyFile(t *testing.T) {
	shell := startFakeShell(t)

	path := filepath.Join(t.TempDir(), "settings.jsonc")
	content := "{\n  // dark mode\n  \"theme\": \"dark\",\n  \"size\": 12, /* px */\n}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute("fetch", "api/settings", "--method", "PUT", "--body-file", path); err != nil {
		t.Fatal(err)
	}

	shell.mu.Lock()
	defer shell.mu.Unlock()
	body := shell.fetches[0].Body
	if body == nil || *body != `{"theme":"dark","size":12}` {
		t.Errorf("body = %v, want compact JSON", body)
	}
}

func TestFetchErrors(t *testing.T) {
	startFakeShell(t)

	if _, _, err := execute("fetch"); err == nil {
		t.Error("expected error without a path")
	}
	if _, _, err := execute("fetch", "a", "--body", "{}", "--body-file", "x"); err == nil {
		t.Error("expected error with both --body and --body-file")
	}

	invalid := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(invalid, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute("fetch", "a", "--body-file", invalid); err == nil || !strings.Contains(err.Error(), "parsing request body") {
		t.Errorf("err = %v, want a parse error", err)
	}

	_, _, err := execute("fetch", "broken")
	var remote *ipc.RemoteError
	if !errors.As(err, &remote) || !strings.Contains(remote.Message, "connection refused") {
		t.Errorf("err = %v, want the shell's error", err)
	}
}

func TestQuit(t *testing.T) {
	shell := startFakeShell(t)

	if _, _, err := execute("quit"); err != nil {
		t.Fatal(err)
	}
	shell.mu.Lock()
	defer shell.mu.Unlock()
	if !shell.quitting {
		t.Error("quit not delivered")
	}
}

func TestSocketFlagOverridesEnvironment(t *testing.T) {
	startFakeShell(t)
	missing := filepath.Join(t.TempDir(), "missing.sock")

	_, _, err := execute("status", "--socket", missing)
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Errorf("err = %v, want a connection error naming %s", err, missing)
	}
}

func TestRejectsArguments(t *testing.T) {
	startFakeShell(t)
	if _, _, err := execute("status", "extra"); err == nil {
		t.Error("expected error for unexpected argument")
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute("version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "companion ") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestVerboseLogsCall(t *testing.T) {
	startFakeShell(t)
	_, stderr, err := execute("toggle", "--verbose")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "bridge call finished") || !strings.Contains(stderr, ipc.ActionToggleServer) {
		t.Errorf("stderr = %q, want a debug line for the call", stderr)
	}
}
