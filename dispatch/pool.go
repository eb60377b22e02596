// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	taskgraph "github.com/yvt/ngspades-sub003"
)

// Pool runs spawned closures on a fixed set of worker goroutines, in FIFO
// order of submission. The queue is unbounded: Spawn never blocks, and a
// closure may spawn further closures while a worker is executing it.
type Pool struct {
	logger taskgraph.Logger

	lock   sync.Mutex
	signal sync.Cond
	queue  []func()
	closed bool

	quiesced sync.WaitGroup
}

// NewPool starts a pool with the given number of workers. A non-positive
// count uses one worker per available CPU.
func NewPool(logger taskgraph.Logger, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{logger: logger}
	p.signal = sync.Cond{L: &p.lock}

	p.quiesced.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}

	return p
}

/*

Every closure accepted by Spawn is eventually executed, as long as the pool is not closed.
Proof: An accepted closure is appended to the queue (1) and the condition variable is signaled (2)
under the lock. A worker is either waiting on the condition variable, in which case it wakes up (3)
and pops a closure in its next iteration (4), or it is executing a closure, which is the only point
where a worker does not hold the lock (5). In the latter case the worker finishes the closure,
reacquires the lock, and pops the next closure in its following iteration (4). Workers only stop
popping when the closed flag is set. Closures never run under the lock (5), so a closure that
spawns another closure cannot deadlock the pool, whatever the worker count.

*/

func (p *Pool) run() {
	defer p.quiesced.Done()

	p.lock.Lock()
	defer p.lock.Unlock()

	for !p.closed {
		if len(p.queue) == 0 {
			p.signal.Wait() // (3)
			continue
		}

		f := p.queue[0]
		p.queue[0] = nil      // Cleanup any object references reachable from the closure
		p.queue = p.queue[1:] // (4)

		p.lock.Unlock() // (5)
		f()
		p.lock.Lock()
	}
}

// Spawn queues f for execution by some worker. On a closed pool, f is
// dropped.
func (p *Pool) Spawn(f func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		p.logger.Debug("Dropping closure spawned on a closed pool")
		return
	}

	p.queue = append(p.queue, f) // (1)

	p.signal.Broadcast() // (2)
}

// Close stops the workers once they finish the closures they are currently
// executing, drops whatever is still queued, and returns when every worker
// has exited. It is idempotent. Close must not be called from a worker, and
// closing a pool that a graph run is still dispatching on strands that run.
func (p *Pool) Close() {
	p.lock.Lock()

	p.closed = true
	dropped := len(p.queue)
	p.queue = nil

	p.signal.Broadcast()
	p.lock.Unlock()

	if dropped > 0 {
		p.logger.Debug("Dropped queued closures on close", zap.Int("count", dropped))
	}

	p.quiesced.Wait()
}
