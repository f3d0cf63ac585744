// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds the per-run state shared by the shell's
// components: the bearer token minted at startup.
//
// A Session is immutable once constructed, so it needs no lock. The
// token is handed to every sidecar the supervisor spawns (as the TOKEN
// environment variable) and embedded in the advertised server URL.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

// Session is the state created once at shell startup and kept for the
// life of the process.
type Session struct {
	token string
}

// New mints a session with a random version 4 UUID token.
func New() (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	return &Session{token: id.String()}, nil
}

// NewWithToken creates a session around an existing token. The token
// must be a UUID; it is stored in canonical lowercase hyphenated form.
func NewWithToken(token string) (*Session, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("session token %q: %w", token, err)
	}
	return &Session{token: id.String()}, nil
}

// Token returns the session's bearer token in canonical UUID form.
func (s *Session) Token() string {
	return s.token
}
