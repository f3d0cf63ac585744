// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shellbridge

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// recordedRequest is what the stub sidecar saw.
type recordedRequest struct {
	method        string
	path          string
	authorization string
	contentType   string
	body          string
}

// stubSidecar serves response on a loopback port and records every
// request it receives.
type stubSidecar struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newStubSidecar(t *testing.T, response string) *stubSidecar {
	t.Helper()
	stub := &stubSidecar{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.requests = append(stub.requests, recordedRequest{
			method:        r.Method,
			path:          r.URL.RequestURI(),
			authorization: r.Header.Get("Authorization"),
			contentType:   r.Header.Get("Content-Type"),
			body:          string(body),
		})
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *stubSidecar) port(t *testing.T) int {
	t.Helper()
	_, portText, err := net.SplitHostPort(s.server.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatal(err)
	}
	return port
}

func (s *stubSidecar) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

// bridgeFor returns a bridge whose advertised address is the stub.
func bridgeFor(t *testing.T, stub *stubSidecar) *Bridge {
	t.Helper()
	return newTestBridge(t, Config{Probe: staticProbe("127.0.0.1"), Port: stub.port(t)})
}

func stringPointer(s string) *string { return &s }

func TestFetchGet(t *testing.T) {
	stub := newStubSidecar(t, `{"b": 2, "a": [1, 2.5, null], "c": "<tag> & more"}`)
	bridge := bridgeFor(t, stub)

	result, err := bridge.Fetch(context.Background(), "api/status", "GET", "secret-token", nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if want := `{"a":[1,2.5,null],"b":2,"c":"<tag> & more"}`; result != want {
		t.Errorf("result = %s, want %s", result, want)
	}

	requests := stub.recorded()
	if len(requests) != 1 {
		t.Fatalf("sidecar saw %d requests, want 1", len(requests))
	}
	request := requests[0]
	if request.method != http.MethodGet {
		t.Errorf("method = %q", request.method)
	}
	if request.path != "/api/status" {
		t.Errorf("path = %q, want /api/status", request.path)
	}
	if request.authorization != "Bearer secret-token" {
		t.Errorf("Authorization = %q", request.authorization)
	}
	if request.contentType != "application/json" {
		t.Errorf("Content-Type = %q", request.contentType)
	}
	if strings.Contains(request.path, "token=") {
		t.Errorf("session token leaked into forwarded URL %q", request.path)
	}
}

func TestFetchPostBody(t *testing.T) {
	stub := newStubSidecar(t, `{"ok":true}`)
	bridge := bridgeFor(t, stub)

	result, err := bridge.Fetch(context.Background(), "x", "post", "t", stringPointer(`{"k":1}`))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result != `{"ok":true}` {
		t.Errorf("result = %s", result)
	}

	request := stub.recorded()[0]
	if request.method != http.MethodPost {
		t.Errorf("method = %q, want POST", request.method)
	}
	if request.body != `{"k":1}` {
		t.Errorf("body = %q, want {\"k\":1}", request.body)
	}
	if request.authorization != "Bearer t" {
		t.Errorf("Authorization = %q", request.authorization)
	}
}

func TestFetchMethods(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       *string
		wantMethod string
		wantBody   string
	}{
		{"put with body", "PUT", stringPointer(`{"theme":"dark"}`), http.MethodPut, `{"theme":"dark"}`},
		{"post without body", "Post", nil, http.MethodPost, ""},
		{"get ignores body", "get", stringPointer("ignored"), http.MethodGet, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stub := newStubSidecar(t, `[]`)
			bridge := bridgeFor(t, stub)

			if _, err := bridge.Fetch(context.Background(), "api/settings", test.method, "t", test.body); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			request := stub.recorded()[0]
			if request.method != test.wantMethod {
				t.Errorf("method = %q, want %q", request.method, test.wantMethod)
			}
			if request.body != test.wantBody {
				t.Errorf("body = %q, want %q", request.body, test.wantBody)
			}
		})
	}
}

func TestFetchUnsupportedMethod(t *testing.T) {
	stub := newStubSidecar(t, `{}`)
	bridge := bridgeFor(t, stub)

	_, err := bridge.Fetch(context.Background(), "api/item", "DELETE", "t", nil)
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("error = %v, want ErrUnsupportedMethod", err)
	}
	if len(stub.recorded()) != 0 {
		t.Error("unsupported method reached the sidecar")
	}
}

func TestFetchPreservesLargeNumbers(t *testing.T) {
	stub := newStubSidecar(t, `{"id": 12345678901234567890, "ratio": 0.1}`)
	bridge := bridgeFor(t, stub)

	result, err := bridge.Fetch(context.Background(), "api/x", "GET", "t", nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"id":12345678901234567890,"ratio":0.1}`; result != want {
		t.Errorf("result = %s, want %s", result, want)
	}
}

func TestFetchNonJSONResponse(t *testing.T) {
	stub := newStubSidecar(t, `<html>not json</html>`)
	bridge := bridgeFor(t, stub)

	_, err := bridge.Fetch(context.Background(), "api/status", "GET", "t", nil)
	if err == nil {
		t.Fatal("expected JSON decode error")
	}
	message := err.Error()
	for _, want := range []string{"parsing response", "GET", "/api/status"} {
		if !strings.Contains(message, want) {
			t.Errorf("error %q does not mention %q", message, want)
		}
	}
}

func TestFetchTrailingGarbage(t *testing.T) {
	stub := newStubSidecar(t, `{"ok":true}}]`)
	bridge := bridgeFor(t, stub)

	_, err := bridge.Fetch(context.Background(), "api/status", "GET", "t", nil)
	if err == nil {
		t.Fatal("expected error for trailing garbage after the JSON value")
	}
	if !strings.Contains(err.Error(), "parsing response") {
		t.Errorf("error %q does not mention parsing response", err)
	}
}

func TestFetchNoAddress(t *testing.T) {
	bridge := newTestBridge(t, Config{Probe: failingProbe})

	_, err := bridge.Fetch(context.Background(), "api/status", "GET", "t", nil)
	if !errors.Is(err, ErrNoAddress) {
		t.Errorf("error = %v, want ErrNoAddress", err)
	}
}

func TestFetchSidecarDown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	bridge := newTestBridge(t, Config{Probe: staticProbe("127.0.0.1"), Port: port})
	_, err = bridge.Fetch(context.Background(), "api/status", "GET", "t", nil)
	if err == nil {
		t.Fatal("expected send error with nothing listening")
	}
	if !strings.Contains(err.Error(), "executing request GET") {
		t.Errorf("error = %q, want an execute failure", err.Error())
	}
}

func TestFetchContextCancelled(t *testing.T) {
	stub := newStubSidecar(t, `{}`)
	bridge := bridgeFor(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bridge.Fetch(ctx, "api/status", "GET", "t", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
