// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"fmt"
	"sync/atomic"
)

// CellID is an index of a cell within the graph that defined it. It carries
// no meaning relative to any other graph.
type CellID int

// CellRef tags a CellID with the type stored in the cell, letting call sites
// recover static typing on borrow. It is a plain value, freely copyable, and
// carries no state beyond the index.
type CellRef[T any] struct {
	id CellID
}

// ID returns the untyped index of the referenced cell.
func (r CellRef[T]) ID() CellID {
	return r.id
}

// Consumes declares a reading use of the referenced cell.
func (r CellRef[T]) Consumes() CellUse {
	return CellUse{Cell: r.id}
}

// Produces declares a writing use of the referenced cell.
func (r CellRef[T]) Produces() CellUse {
	return CellUse{Cell: r.id, Producer: true}
}

// CellUse declares one task's access intent to one cell. Producing uses
// order the producing task before every other task that declares a consuming
// use of the same cell. A task may declare both directions on its own cell;
// that never creates an edge back to the task itself.
type CellUse struct {
	Cell     CellID
	Producer bool
}

// cell is one storage slot of a graph. value holds a pointer to the stored
// data, boxed as any so that slots of different types share one table. The
// box itself never changes after Build; only the pointed-to data does.
//
// borrows tracks live accesses: 0 is free, exclusiveBorrow is a single
// writer, and a positive count is that many concurrent readers. Conflicts
// are contract violations of the task that declared its uses wrong, so they
// panic instead of blocking.
type cell struct {
	value   any
	borrows atomic.Int32
}

const exclusiveBorrow = -1

func (c *cell) acquireShared(id CellID) {
	for {
		n := c.borrows.Load()
		if n < 0 {
			panic(fmt.Sprintf("taskgraph: cell %d is exclusively borrowed", id))
		}
		if c.borrows.CompareAndSwap(n, n+1) {
			return
		}
	}
}

func (c *cell) releaseShared() {
	c.borrows.Add(-1)
}

func (c *cell) acquireExclusive(id CellID) {
	if !c.borrows.CompareAndSwap(0, exclusiveBorrow) {
		panic(fmt.Sprintf("taskgraph: cell %d is already borrowed", id))
	}
}

func (c *cell) releaseExclusive() {
	c.borrows.Store(0)
}

// cellPointer downcasts the cell's box to *T. The box is immutable after
// Build, so no borrow is needed to inspect its type.
func cellPointer[T any](c *cell, id CellID) *T {
	p, ok := c.value.(*T)
	if !ok {
		panic(fmt.Sprintf("taskgraph: cell %d holds %T, not %T", id, c.value, (*T)(nil)))
	}
	return p
}

// releaseOnce wraps a release operation so that a leaked second call fails
// loudly instead of corrupting the borrow count.
func releaseOnce(release func()) func() {
	released := false
	return func() {
		if released {
			panic("taskgraph: cell released twice")
		}
		released = true
		release()
	}
}
