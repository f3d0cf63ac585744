// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is an injectable time source.
//
// The sidecar supervisor polls its command channel on a ticker and
// bounds its post-kill reap wait with After. Both come from a Clock so
// tests can drive the poll schedule without sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	supervisor := sidecar.New(sidecar.Config{Clock: fake, ...})
//	go supervisor.Run(ctx)
//	fake.WaitForTimers(1)             // the poll ticker is registered
//	fake.Advance(500 * time.Millisecond) // one poll happens
package clock
