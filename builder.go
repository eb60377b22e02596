// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// TaskInfo describes one task to a Builder: the work itself, the cell uses
// that dependency inference runs on, and an optional name.
type TaskInfo struct {
	// Name identifies the task in logs, fault reports and topology dumps.
	// Unnamed tasks are reported by their index.
	Name string

	Task Task

	// Uses declares every cell access the task will perform during Execute.
	// Accesses not declared here panic at borrow time.
	Uses []CellUse
}

// Builder accumulates cell and task definitions and compiles them into an
// immutable Graph. A Builder is single-use: Build consumes it.
//
// A task that declares both a producing and a consuming use of the same cell
// is ordered before that cell's other consumers but gains no edge to itself,
// so it may read and then write the cell sequentially within one Execute.
type Builder struct {
	logger Logger
	cells  []any
	tasks  []TaskInfo
	built  bool
}

func NewBuilder(logger Logger) *Builder {
	return &Builder{logger: logger}
}

// DefineCell appends a cell holding initial and returns a typed reference to
// it. This is a free function because methods cannot introduce type
// parameters.
func DefineCell[T any](b *Builder, initial T) CellRef[T] {
	if b.built {
		panic("taskgraph: builder already consumed by Build")
	}

	v := initial
	b.cells = append(b.cells, &v)

	return CellRef[T]{id: CellID(len(b.cells) - 1)}
}

// DefineTask appends a task. The CellIDs in info.Uses are validated against
// the defined cells at Build time, not here.
func (b *Builder) DefineTask(info TaskInfo) {
	if b.built {
		panic("taskgraph: builder already consumed by Build")
	}

	info.Uses = slices.Clone(info.Uses)
	b.tasks = append(b.tasks, info)
}

// Build infers the dependency DAG from the declared cell uses and returns
// the compiled graph. Task i gains an edge to task j exactly when i declares
// a producing use of some cell that j declares a consuming use of. Build
// panics on malformed input: an out-of-range CellID, a nil Task, or a
// dependency cycle.
func (b *Builder) Build() *Graph {
	if b.built {
		panic("taskgraph: builder already consumed by Build")
	}
	b.built = true

	// First pass: collect every cell's consumers, so that the second pass
	// sees complete consumer lists no matter how tasks were ordered.
	consumers := make([][]int32, len(b.cells))
	producers := make([]int, len(b.cells))
	for i, info := range b.tasks {
		if info.Task == nil {
			panic(fmt.Sprintf("taskgraph: task %s has no Task", describeTask(info.Name, i)))
		}
		for _, use := range info.Uses {
			if use.Cell < 0 || int(use.Cell) >= len(b.cells) {
				panic(fmt.Sprintf("taskgraph: task %s uses undefined cell %d", describeTask(info.Name, i), use.Cell))
			}
			if use.Producer {
				producers[use.Cell]++
			} else {
				consumers[use.Cell] = append(consumers[use.Cell], int32(i))
			}
		}
	}

	for id, n := range producers {
		if n > 1 {
			// Legal, but the producers run unordered with respect to each
			// other. Overlapping writes surface as borrow conflicts.
			b.logger.Warn("Cell has multiple producers", zap.Int("cell", id), zap.Int("producers", n))
		}
	}

	// Second pass: a producing use unblocks the cell's consumers. The list
	// is sorted and deduplicated so that a successor reachable through
	// several cells is decremented once per predecessor, never more.
	tasks := make([]graphTask, len(b.tasks))
	for i, info := range b.tasks {
		var unblocks []int32
		for _, use := range info.Uses {
			if !use.Producer {
				continue
			}
			for _, j := range consumers[use.Cell] {
				if int(j) != i {
					unblocks = append(unblocks, j)
				}
			}
		}
		slices.Sort(unblocks)

		tasks[i] = graphTask{
			name:     info.Name,
			task:     info.Task,
			uses:     info.Uses,
			unblocks: slices.Compact(unblocks),
		}
	}

	for i := range tasks {
		for _, j := range tasks[i].unblocks {
			tasks[j].blockers++
		}
	}

	roots := make([]int32, 0, len(tasks))
	for i := range tasks {
		if tasks[i].blockers == 0 {
			roots = append(roots, int32(i))
		}
	}

	assertAcyclic(tasks, roots)

	cells := make([]cell, len(b.cells))
	for i, v := range b.cells {
		cells[i].value = v
	}

	g := &Graph{
		logger: b.logger,
		tasks:  tasks,
		cells:  cells,
		roots:  roots,
	}

	b.logger.Debug("Compiled task graph",
		zap.Int("tasks", len(tasks)),
		zap.Int("cells", len(cells)),
		zap.Int("roots", len(roots)))

	return g
}

// assertAcyclic runs a topological sweep over the inferred edges. A task the
// sweep cannot reach sits on a cycle and would block its own run forever, so
// it is reported as a build failure rather than a hang.
func assertAcyclic(tasks []graphTask, roots []int32) {
	blocked := make([]int32, len(tasks))
	for i := range tasks {
		blocked[i] = tasks[i].blockers
	}

	queue := slices.Clone(roots)
	reached := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		reached++

		for _, j := range tasks[i].unblocks {
			blocked[j]--
			if blocked[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if reached == len(tasks) {
		return
	}

	for i := range tasks {
		if blocked[i] > 0 {
			panic(fmt.Sprintf("taskgraph: dependency cycle through task %s", describeTask(tasks[i].name, i)))
		}
	}
}

func describeTask(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index)
}
