// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Graph is a compiled task graph. Its topology is immutable; only cell
// contents and per-run counters change across runs, so the same graph can be
// run any number of times until it is poisoned by a fault.
type Graph struct {
	logger Logger
	tasks  []graphTask
	cells  []cell
	roots  []int32

	running  atomic.Bool
	poisoned atomic.Bool
}

// graphTask is one compiled task: the work, its declared uses, the successor
// indices it unblocks on completion, and the number of predecessors each run
// must complete before the task becomes ready.
type graphTask struct {
	name     string
	task     Task
	uses     []CellUse
	unblocks []int32
	blockers int32
}

// Poisoned reports whether a fault has made the graph permanently unusable.
func (g *Graph) Poisoned() bool {
	return g.poisoned.Load()
}

// GraphCell returns a pointer to a cell's contents, for seeding input state
// before a run or reading results back after one. It must only be called
// while no run is in flight; a straggling borrow left behind by a faulted
// run's executor is detected and panics.
func GraphCell[T any](g *Graph, ref CellRef[T]) *T {
	if g.running.Load() {
		panic(fmt.Sprintf("taskgraph: cell %d accessed during an active run", ref.id))
	}

	c := &g.cells[ref.id]
	c.acquireExclusive(ref.id)
	defer c.releaseExclusive()

	return cellPointer[T](c, ref.id)
}

// Describe returns a deterministic multi-line rendering of the graph's
// topology, for debug output and test fixtures.
func (g *Graph) Describe() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "graph: %d tasks, %d cells\n", len(g.tasks), len(g.cells))
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.name != "" {
			fmt.Fprintf(&sb, "task %d (%s): blockers=%d unblocks=%v\n", i, t.name, t.blockers, t.unblocks)
		} else {
			fmt.Fprintf(&sb, "task %d: blockers=%d unblocks=%v\n", i, t.blockers, t.unblocks)
		}
	}
	for i := range g.cells {
		fmt.Fprintf(&sb, "cell %d: %T\n", i, g.cells[i].value)
	}

	return sb.String()
}

func (g *Graph) taskLabel(i int32) string {
	return describeTask(g.tasks[i].name, int(i))
}
