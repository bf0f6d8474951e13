package task

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Executor schedules task bodies.
type Executor interface {
	Execute(fn func())
}

type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// Goroutine runs every task on its own goroutine. It is the default.
var Goroutine Executor = ExecutorFunc(func(fn func()) { go fn() })

// Inline runs task bodies on the caller's goroutine.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Bounded runs at most n task bodies concurrently; further bodies wait for a
// slot on their own goroutine.
func Bounded(n int64) Executor {
	if n <= 0 {
		n = 1
	}
	sem := semaphore.NewWeighted(n)
	return ExecutorFunc(func(fn func()) {
		go func() {
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)
			fn()
		}()
	})
}
