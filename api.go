// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"go.uber.org/zap"
)

type Logger interface {
	// Log that a fatal error has occurred. The program should likely exit soon
	// after this is called
	Fatal(msg string, fields ...zap.Field)
	// Log that an error has occurred. The program should be able to recover
	// from this error
	Error(msg string, fields ...zap.Field)
	// Log that an event has occurred that may indicate a future error or
	// vulnerability
	Warn(msg string, fields ...zap.Field)
	// Log an event that may be useful for a user to see to measure the progress
	// of a run
	Info(msg string, fields ...zap.Field)
	// Log an event that may be useful for understanding the order of the
	// execution of tasks
	Trace(msg string, fields ...zap.Field)
	// Log an event that may be useful for a programmer to see when debuging the
	// execution of a run
	Debug(msg string, fields ...zap.Field)
	// Log extremely detailed events that can be useful for inspecting every
	// aspect of the program
	Verbo(msg string, fields ...zap.Field)
}

type Executor interface {
	// Spawn submits f for execution and returns without waiting for it.
	// The executor must eventually invoke f exactly once on some goroutine,
	// and must accept calls to Spawn made from within a closure it is
	// currently executing.
	Spawn(f func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(f func())

func (e ExecutorFunc) Spawn(f func()) {
	e(f)
}

type Task interface {
	// Execute performs the task's work. It is given access to the cells the
	// task declared uses for, and to no others. Returning an error aborts
	// the run and poisons the graph.
	Execute(tc *Context) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(tc *Context) error

func (t TaskFunc) Execute(tc *Context) error {
	return t(tc)
}
