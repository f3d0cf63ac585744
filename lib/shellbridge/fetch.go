// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shellbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bureau-foundation/companion/lib/netutil"
)

// ErrUnsupportedMethod is returned by Fetch for methods other than
// GET, POST and PUT.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Fetch forwards a request to the sidecar and returns its JSON response
// in compact form.
//
// The target is the advertised address without its query, plus "/"
// and url. method is matched case-insensitively against GET, POST and
// PUT. body is sent verbatim for POST and PUT when non-nil. The
// request carries "Authorization: Bearer <token>" and a JSON content
// type. The response must be a single JSON value whatever its status
// code.
//
// PUT goes beyond the GET and POST the page script uses for most
// calls; the settings page saves with PUT, so it is forwarded the
// same way as POST.
//
// Every error names the target URL and method.
func (b *Bridge) Fetch(ctx context.Context, url, method, token string, body *string) (string, error) {
	address, ok := b.ServerAddress()
	if !ok {
		return "", fmt.Errorf("fetch %s %s: %w", method, url, ErrNoAddress)
	}
	base, _, _ := strings.Cut(address, "?")
	target := base + "/" + url

	normalized := strings.ToUpper(method)
	var requestBody io.Reader
	switch normalized {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		if body != nil {
			requestBody = strings.NewReader(*body)
		}
	default:
		return "", fmt.Errorf("fetch %s %s: %w %q", method, target, ErrUnsupportedMethod, method)
	}

	request, err := http.NewRequestWithContext(ctx, normalized, target, requestBody)
	if err != nil {
		return "", fmt.Errorf("building request %s %s: %w", method, target, err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Content-Type", "application/json")

	response, err := b.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("executing request %s %s: %w", method, target, err)
	}
	defer response.Body.Close()

	b.logger.Debug("sidecar responded", "url", target, "method", normalized, "status", response.StatusCode)

	value, err := netutil.DecodeJSON(response.Body)
	if err != nil {
		return "", fmt.Errorf("parsing response from %s %s as JSON: %w", method, target, err)
	}

	compact, err := marshalCompact(value)
	if err != nil {
		return "", fmt.Errorf("serializing response from %s %s: %w", method, target, err)
	}
	return compact, nil
}

// marshalCompact encodes value as compact JSON without HTML escaping,
// so "<" and "&" in sidecar strings come back unchanged.
func marshalCompact(value any) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buffer.String(), "\n"), nil
}
