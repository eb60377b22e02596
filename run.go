// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runState is the mutable companion of one run: the per-task blocking
// counters, the quiescence count and the first-fault slots. Spawned closures
// share it by pointer, so it stays valid for stragglers that are still
// draining on the executor after a faulted run returned early.
type runState struct {
	graph *Graph
	exec  Executor
	id    string

	blocking []atomic.Int32
	pending  atomic.Int64

	panicked atomic.Pointer[taskPanic]
	failed   atomic.Pointer[taskFailure]

	done   chan struct{}
	finish sync.Once
}

type taskPanic struct {
	task  int32
	value any
	stack []byte
}

type taskFailure struct {
	task int32
	err  error
}

// Run executes the graph once, dispatching tasks onto the given executor,
// and blocks until the run completes or faults. A task returning an error
// poisons the graph and is returned from Run; a task panicking poisons the
// graph and the panic is re-raised here, on the calling goroutine. In both
// cases Run wakes as soon as the first fault is recorded, so unrelated tasks
// of the same run may still be draining on the executor when it returns.
//
// Calling Run on a poisoned graph, or concurrently with another Run of the
// same graph, is a contract violation and panics.
func (g *Graph) Run(exec Executor) error {
	if g.poisoned.Load() {
		panic("taskgraph: Run on a poisoned graph")
	}
	if !g.running.CompareAndSwap(false, true) {
		panic("taskgraph: concurrent Run on the same graph")
	}
	defer g.running.Store(false)

	if len(g.tasks) == 0 {
		g.logger.Verbo("Run of an empty graph")
		return nil
	}

	rs := &runState{
		graph:    g,
		exec:     exec,
		id:       uuid.NewString(),
		blocking: make([]atomic.Int32, len(g.tasks)),
		done:     make(chan struct{}),
	}
	for i := range g.tasks {
		rs.blocking[i].Store(g.tasks[i].blockers) // (1)
	}
	rs.pending.Store(int64(len(g.tasks)))

	g.logger.Debug("Starting run",
		zap.String("run", rs.id),
		zap.Int("tasks", len(g.tasks)),
		zap.Int("roots", len(g.roots)))

	for _, i := range g.roots {
		rs.spawn(i) // (2)
	}

	<-rs.done // (3)

	if p := rs.panicked.Load(); p != nil {
		g.logger.Error("Task panicked",
			zap.String("run", rs.id),
			zap.String("task", g.taskLabel(p.task)),
			zap.Any("panic", p.value),
			zap.ByteString("stack", p.stack))
		panic(p.value)
	}
	if f := rs.failed.Load(); f != nil {
		g.logger.Error("Task failed",
			zap.String("run", rs.id),
			zap.String("task", g.taskLabel(f.task)),
			zap.Error(f.err))
		return fmt.Errorf("task %s: %w", g.taskLabel(f.task), f.err)
	}

	g.logger.Debug("Run complete", zap.String("run", rs.id))
	return nil
}

func (rs *runState) spawn(i int32) {
	rs.exec.Spawn(func() {
		rs.runTask(i)
	})
}

/*

(a) Every successor is spawned exactly once per run.
Proof: Task j's blocking counter is initialized to the number of distinct tasks whose deduplicated
unblocks list contains j (1). A completing predecessor decrements the counter of each entry of its
unblocks list exactly once (7), and faulting tasks decrement nothing, so the counter receives at most
one decrement per predecessor and never goes below zero. The decrements are atomic, so each returns a
distinct value, so the transition to zero is observed by exactly one decrementer, and that decrementer
is the one that spawns j (8). Roots have a zero counter and are spawned once by the initiator instead (2).

(b) The initiator is woken after a finite number of steps once the run's outcome is decided.
Proof: The initiator parks on the done channel (3). If no task faults, every task completes: by
induction on dependency depth, the roots are spawned (2) and each other task is spawned when its
last predecessor completes, by (a). Each completion decrements the pending count once (9), the count
starts at the number of tasks, so the final completion observes zero and closes the channel (10).
If a task faults, the fault is recorded (5) and the faulting worker then closes the channel
directly (6, 10), without waiting for the rest of the run. Closing is guarded by a sync.Once, so
the two paths never race, and a closed channel wakes the initiator immediately.

*/

func (rs *runState) runTask(i int32) {
	g := rs.graph

	if g.poisoned.Load() { // (4) a sibling faulted; the run is already lost
		return
	}

	g.logger.Trace("Executing task", zap.String("run", rs.id), zap.String("task", g.taskLabel(i)))

	if !rs.execute(i) {
		rs.wake() // (6)
		return
	}

	t := &g.tasks[i]
	g.logger.Verbo("Task completed",
		zap.String("run", rs.id),
		zap.String("task", g.taskLabel(i)),
		zap.Int("unblocks", len(t.unblocks)))

	for _, j := range t.unblocks {
		if rs.blocking[j].Add(-1) == 0 { // (7)
			rs.spawn(j) // (8)
		}
	}

	if rs.pending.Add(-1) == 0 { // (9)
		rs.wake()
	}
}

// execute invokes the task and records its fault, if any, in the slot for
// the fault's class. The first fault of each class wins; later ones are
// discarded. Reports whether the task completed successfully.
func (rs *runState) execute(i int32) (ok bool) {
	g := rs.graph

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ok = false

		// Record before poisoning: a goroutine that observes the poison flag
		// may rely on the winning fault being visible.
		if !rs.panicked.CompareAndSwap(nil, &taskPanic{task: i, value: r, stack: debug.Stack()}) { // (5)
			g.logger.Debug("Discarding concurrent panic",
				zap.String("run", rs.id),
				zap.String("task", g.taskLabel(i)))
		}
		g.poisoned.Store(true)
	}()

	tc := Context{run: rs, task: i}
	if err := g.tasks[i].task.Execute(&tc); err != nil {
		if !rs.failed.CompareAndSwap(nil, &taskFailure{task: i, err: err}) { // (5)
			g.logger.Debug("Discarding concurrent error",
				zap.String("run", rs.id),
				zap.String("task", g.taskLabel(i)),
				zap.Error(err))
		}
		g.poisoned.Store(true)

		return false
	}

	return true
}

func (rs *runState) wake() {
	rs.finish.Do(func() {
		close(rs.done) // (10)
	})
}
