package gate

import (
	"context"

	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
)

// StatusReader returns the recorded status for a message, or nil when none
// exists.
type StatusReader interface {
	Status(ctx context.Context, sourceID string) (*inbound.Status, error)
}

type StatusReaderFunc func(ctx context.Context, sourceID string) (*inbound.Status, error)

func (f StatusReaderFunc) Status(ctx context.Context, sourceID string) (*inbound.Status, error) {
	return f(ctx, sourceID)
}

const FailureStatusUnavailable = "STATUS_UNAVAILABLE"

// StatusObserver binds the recorded status. A message without one is on its
// first attempt. A read error is collected as a transient failure and
// leaves the status unbound.
func StatusObserver[T any](reader StatusReader) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		scope := inbound.ScopeOf(c)
		status, err := reader.Status(c.Context(), scope.Origin.SourceID)
		if err != nil {
			return behavior.Pass(inbound.AddFailure(c, inbound.Failure{
				Taxonomy: inbound.TaxonomyTransient,
				Code:     FailureStatusUnavailable,
				Message:  err.Error(),
				Cause:    err,
			}))
		}
		if status == nil {
			status = inbound.FirstAttempt(scope.Now)
		}
		return behavior.Pass(behavior.Set(c, inbound.KeyStatus, status))
	}
}
