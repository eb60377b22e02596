// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"fmt"
)

// Context is the view of cell storage handed to a task's Execute. It is
// only valid for the duration of that call.
//
// Every borrow must match a use the task declared when it was defined, and
// must be released before Execute returns. The borrows of one Execute are
// independent of each other: a task declaring both directions on a cell may
// take a shared borrow, release it, and then take an exclusive one.
type Context struct {
	run  *runState
	task int32
}

// RunID identifies the run this execution belongs to. It appears in the
// engine's log lines, so tasks doing their own logging can correlate.
func (tc *Context) RunID() string {
	return tc.run.id
}

// Logger returns the logger the graph was built with.
func (tc *Context) Logger() Logger {
	return tc.run.graph.logger
}

// Borrow takes a shared borrow of the cell, which the task must have
// declared a consuming use for. The returned release function must be called
// exactly once, before Execute returns.
func Borrow[T any](tc *Context, ref CellRef[T]) (*T, func()) {
	c := tc.checkUse(ref.id, false)
	p := cellPointer[T](c, ref.id)
	c.acquireShared(ref.id)
	return p, releaseOnce(c.releaseShared)
}

// BorrowMut takes an exclusive borrow of the cell, which the task must have
// declared a producing use for. The returned release function must be called
// exactly once, before Execute returns.
func BorrowMut[T any](tc *Context, ref CellRef[T]) (*T, func()) {
	c := tc.checkUse(ref.id, true)
	p := cellPointer[T](c, ref.id)
	c.acquireExclusive(ref.id)
	return p, releaseOnce(c.releaseExclusive)
}

// BorrowDyn is Borrow for callers that do not know the cell's type
// statically. The returned value is the cell's box, a *T for a cell defined
// with type T.
func (tc *Context) BorrowDyn(id CellID) (any, func()) {
	c := tc.checkUse(id, false)
	c.acquireShared(id)
	return c.value, releaseOnce(c.releaseShared)
}

// BorrowDynMut is BorrowMut for callers that do not know the cell's type
// statically.
func (tc *Context) BorrowDynMut(id CellID) (any, func()) {
	c := tc.checkUse(id, true)
	c.acquireExclusive(id)
	return c.value, releaseOnce(c.releaseExclusive)
}

// checkUse panics unless the task declared a use of the cell in the given
// direction. Undeclared accesses would race with the dependency order, so
// they are rejected before touching the cell at all.
func (tc *Context) checkUse(id CellID, producer bool) *cell {
	g := tc.run.graph
	t := &g.tasks[tc.task]
	for _, use := range t.uses {
		if use.Cell == id && use.Producer == producer {
			return &g.cells[id]
		}
	}

	direction := "consuming"
	if producer {
		direction = "producing"
	}
	panic(fmt.Sprintf("taskgraph: task %s has no declared %s use of cell %d", g.taskLabel(tc.task), direction, id))
}
