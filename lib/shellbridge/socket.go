// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shellbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/companion/lib/codec"
	"github.com/bureau-foundation/companion/lib/ipc"
)

// Register installs the bridge operations on server. quit is called by
// the quit action and should start the shell's shutdown without
// waiting for it, since the caller is still connected.
func (b *Bridge) Register(server *ipc.SocketServer, quit func()) {
	server.Handle(ipc.ActionServerAddress, func(ctx context.Context, raw []byte) (any, error) {
		address, _ := b.ServerAddress()
		return ipc.AddressResponse{Address: address}, nil
	})

	server.Handle(ipc.ActionServerStatus, func(ctx context.Context, raw []byte) (any, error) {
		live, err := b.ServerStatus()
		if err != nil {
			return nil, err
		}
		return ipc.StatusResponse{Live: live}, nil
	})

	server.Handle(ipc.ActionToggleServer, func(ctx context.Context, raw []byte) (any, error) {
		live, err := b.ToggleServer()
		if err != nil {
			return nil, err
		}
		return ipc.StatusResponse{Live: live}, nil
	})

	server.Handle(ipc.ActionFetch, func(ctx context.Context, raw []byte) (any, error) {
		var request ipc.FetchRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid fetch request: %w", err)
		}
		body, err := b.Fetch(ctx, request.URL, request.Method, request.Token, request.Body)
		if err != nil {
			return nil, err
		}
		return ipc.FetchResponse{Body: body}, nil
	})

	server.Handle(ipc.ActionServerInfo, func(ctx context.Context, raw []byte) (any, error) {
		info, err := b.Info()
		if err != nil {
			return nil, err
		}
		response := ipc.ServerInfo{
			Live:    info.Live,
			PID:     info.PID,
			Binary:  info.Binary,
			Digest:  info.Digest,
			Address: info.Address,
			Version: info.Version,
		}
		if !info.StartedAt.IsZero() {
			response.StartedAt = info.StartedAt.UTC().Format(time.RFC3339)
		}
		return response, nil
	})

	server.Handle(ipc.ActionQuit, func(ctx context.Context, raw []byte) (any, error) {
		b.logger.Info("quit requested over bridge socket")
		quit()
		return nil, nil
	})
}
