package gate

import (
	"verdict/pkg/behavior"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
)

// Guard runs fn and records its error or panic as a failure instead of
// stopping the pipeline. The step always succeeds.
func Guard[T any](code string, fn func(behavior.StepContext[T]) (behavior.StepContext[T], error)) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		next, err := guarded(c, fn)
		if err != nil {
			return behavior.Pass(inbound.AddFailure(c, inbound.FailureFromError(code, err)))
		}
		return behavior.Pass(next)
	}
}

func guarded[T any](c behavior.StepContext[T], fn func(behavior.StepContext[T]) (behavior.StepContext[T], error)) (next behavior.StepContext[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return fn(c)
}
