// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

// Inline is an executor that invokes every closure immediately on the
// calling goroutine. A graph run dispatched on it executes one task at a
// time, in depth-first unblock order, which makes runs fully deterministic.
// Reentrant spawns nest on the stack, so very deep graphs are better served
// by a Pool.
type Inline struct{}

func (Inline) Spawn(f func()) {
	f()
}
