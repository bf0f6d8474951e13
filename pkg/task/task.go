// Package task provides a deferred, cancelable unit of asynchronous work.
//
// A Task does nothing until it is started, either explicitly with Start or
// implicitly by Await. Derived tasks (Map, FlatMap, OnError, WithTimeout)
// start their antecedent when they themselves start.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "verdict/pkg/errors"
)

type State int32

const (
	StateUnscheduled State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unscheduled"
	}
}

var (
	ErrCancelled = apperrors.ErrCancelled
	ErrTimeout   = apperrors.ErrTimeout
)

type Option func(*options)

type options struct {
	executor Executor
}

func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.executor = e
		}
	}
}

type Task[T any] struct {
	supplier func(ctx context.Context) (T, error)
	executor Executor

	state     atomic.Int32
	cancelled atomic.Bool
	settled   atomic.Bool
	done      chan struct{}

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	value T
	err   error
}

// New wraps supplier in an unscheduled Task. The context passed to supplier
// is cancelled when the task is cancelled or times out.
func New[T any](supplier func(ctx context.Context) (T, error), opts ...Option) *Task[T] {
	o := options{executor: Goroutine}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Task[T]{
		supplier: supplier,
		executor: o.executor,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Completed returns an already settled successful task.
func Completed[T any](value T) *Task[T] {
	t := New[T](nil)
	t.startOnce.Do(func() {})
	t.settle(value, nil)
	return t
}

// Failed returns an already settled failed task.
func Failed[T any](err error) *Task[T] {
	t := New[T](nil)
	t.startOnce.Do(func() {})
	var zero T
	t.settle(zero, err)
	return t
}

// Start schedules the task once. A task cancelled before it is scheduled
// settles as cancelled without running its supplier.
func (t *Task[T]) Start() *Task[T] {
	t.startOnce.Do(func() {
		if t.cancelled.Load() {
			var zero T
			t.settle(zero, ErrCancelled)
			return
		}
		t.state.CompareAndSwap(int32(StateUnscheduled), int32(StateRunning))
		t.executor.Execute(t.run)
	})
	return t
}

func (t *Task[T]) run() {
	var (
		value T
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
			}
		}()
		if t.cancelled.Load() {
			err = ErrCancelled
			return
		}
		value, err = t.supplier(t.ctx)
	}()
	t.settle(value, err)
}

// settle records the first outcome; later calls are ignored.
func (t *Task[T]) settle(value T, err error) bool {
	if !t.settled.CompareAndSwap(false, true) {
		return false
	}
	t.value, t.err = value, err
	switch {
	case err == nil:
		t.state.Store(int32(StateCompleted))
	case apperrors.IsCancelled(err):
		t.state.Store(int32(StateCancelled))
	default:
		t.state.Store(int32(StateFailed))
	}
	close(t.done)
	t.cancel()
	return true
}

// Cancel marks the task cancelled and settles it as such if it has not
// settled yet. A running supplier observes the cancellation through its
// context; its eventual result is discarded.
func (t *Task[T]) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
	var zero T
	t.settle(zero, ErrCancelled)
}

func (t *Task[T]) IsCancelled() bool {
	return t.cancelled.Load()
}

func (t *Task[T]) State() State {
	return State(t.state.Load())
}

// Done is closed once the task has settled. It does not start the task.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Await starts the task if needed and waits for it to settle or for ctx to
// end. Ending ctx does not cancel the task.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	t.Start()
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, apperrors.ErrCancelled.WithCause(ctx.Err())
	}
}

// Result returns the settled outcome without waiting. ok is false while the
// task is unsettled.
func (t *Task[T]) Result() (value T, err error, ok bool) {
	select {
	case <-t.done:
		return t.value, t.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Map derives a task that applies fn to the antecedent's value.
func Map[T, U any](t *Task[T], fn func(T) U) *Task[U] {
	return FlatMap(t, func(v T) *Task[U] { return Completed(fn(v)) })
}

// FlatMap derives a task that continues with fn's task. The continuation is
// never invoked once the derived task is cancelled, so a cancelled chain
// does not observe the antecedent's value.
func FlatMap[T, U any](t *Task[T], fn func(T) *Task[U]) *Task[U] {
	var out *Task[U]
	out = New(func(ctx context.Context) (U, error) {
		var zero U
		v, err := awaitWithCancel(ctx, t)
		if err != nil {
			return zero, err
		}
		if out.IsCancelled() {
			return zero, ErrCancelled
		}
		next := fn(v)
		if next == nil {
			return zero, apperrors.ErrInternal.WithMessage("task continuation returned nil")
		}
		return awaitWithCancel(ctx, next)
	}, WithExecutor(t.executor))
	return out
}

// OnError derives a task that replaces a failure with fallback(err).
// Cancellation is not treated as a failure.
func (t *Task[T]) OnError(fallback func(error) T) *Task[T] {
	return t.OnErrorResume(func(err error) *Task[T] { return Completed(fallback(err)) }, nil)
}

// OnErrorResume derives a task that continues with fallback's task when t
// fails. A panic or failure of the fallback is reported to onFallbackError
// and becomes the derived task's error.
func (t *Task[T]) OnErrorResume(fallback func(error) *Task[T], onFallbackError func(error)) *Task[T] {
	var out *Task[T]
	out = New(func(ctx context.Context) (T, error) {
		v, err := awaitWithCancel(ctx, t)
		if err == nil || apperrors.IsCancelled(err) {
			return v, err
		}
		if out.IsCancelled() {
			var zero T
			return zero, ErrCancelled
		}
		resumed, ferr := resume(ctx, fallback, err)
		if ferr != nil && onFallbackError != nil {
			onFallbackError(ferr)
		}
		return resumed, ferr
	}, WithExecutor(t.executor))
	return out
}

func resume[T any](ctx context.Context, fallback func(error) *Task[T], cause error) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	next := fallback(cause)
	if next == nil {
		return value, cause
	}
	return awaitWithCancel(ctx, next)
}

// WithTimeout derives a task that fails with ErrTimeout unless t settles
// within d. The clock starts when WithTimeout is called, not when the
// derived task is started. On timeout t is cancelled. An antecedent on the
// Inline executor runs to completion before the race starts.
func (t *Task[T]) WithTimeout(d time.Duration) *Task[T] {
	deadline := time.Now().Add(d)
	return New(func(ctx context.Context) (T, error) {
		var zero T
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()

		t.Start()
		select {
		case <-t.done:
			return t.value, t.err
		case <-timer.C:
			t.Cancel()
			return zero, ErrTimeout.WithDetail("timeout", d.String())
		case <-ctx.Done():
			t.Cancel()
			return zero, ErrCancelled
		}
	}, WithExecutor(t.executor))
}

// awaitWithCancel waits for t and cancels it if ctx ends first, which is how
// cancellation of a derived task reaches its antecedent.
func awaitWithCancel[T any](ctx context.Context, t *Task[T]) (T, error) {
	t.Start()
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		t.Cancel()
		var zero T
		return zero, ErrCancelled
	}
}
