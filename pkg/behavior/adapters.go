package behavior

import (
	"time"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/task"
	"verdict/pkg/violation"
)

const (
	ViolationStepAborted     = "STEP_ABORTED"
	ViolationAsyncStepFailed = "ASYNC_STEP_FAILED"
	ViolationTimeout         = "TIMEOUT"
	ViolationCancelled       = "CANCELLED"
)

// Transit replaces the payload. It cannot fail.
func Transit[T any](fn func(T) T) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return Pass(c.WithPayload(fn(c.Payload())))
	}
}

// Of adapts a fallible payload transformation. An error becomes a single
// violation called name carrying the error text.
func Of[T any](name string, fn func(T) (T, error)) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		next, err := fn(c.Payload())
		if err != nil {
			return Fail[T](violation.Violate(name, err.Error()))
		}
		return Pass(c.WithPayload(next))
	}
}

// Abort fails unconditionally with a severe STEP_ABORTED violation.
func Abort[T any](reason string) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return Fail[T](violation.Violate(ViolationStepAborted, reason, violation.Severe()))
	}
}

// StepLogger is the subset of the service logger used by Logged.
type StepLogger interface {
	Debugw(msg string, keysAndValues ...interface{})
}

// Logged tags failures of step with name and emits one debug line per run.
func Logged[T any](name string, step Step[T], log StepLogger) Step[T] {
	named := step.Named(name)
	return func(c StepContext[T]) Outcome[T] {
		started := time.Now()
		out := named(c)
		if out.IsFailure() {
			log.Debugw("Step failed",
				"step", name,
				"violations", out.Err().Names(),
				"duration_ms", time.Since(started).Milliseconds(),
			)
			return out
		}
		log.Debugw("Step passed",
			"step", name,
			"aborted", out.Value().Aborted(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return out
	}
}

// Async runs the task built by fn and waits for it on the context's Go
// context. A positive timeout bounds the wait. Task errors become a
// violation: TIMEOUT, CANCELLED or ASYNC_STEP_FAILED.
func Async[T any](fn func(StepContext[T]) *task.Task[T], timeout time.Duration) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		t := fn(c)
		if timeout > 0 {
			t = t.WithTimeout(timeout)
		}
		payload, err := t.Start().Await(c.Context())
		if err != nil {
			t.Cancel()
			return Fail[T](asyncViolation(err))
		}
		return Pass(c.WithPayload(payload))
	}
}

func asyncViolation(err error) violation.Violations {
	switch {
	case apperrors.IsTimeout(err):
		return violation.Violate(ViolationTimeout, err.Error())
	case apperrors.IsCancelled(err):
		return violation.Violate(ViolationCancelled, err.Error())
	default:
		return violation.Violate(ViolationAsyncStepFailed, err.Error())
	}
}
