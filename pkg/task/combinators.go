package task

import (
	"context"

	"verdict/pkg/retry"
)

// All derives a task that succeeds with every value in order, or fails with
// the first error observed. Remaining tasks are cancelled on failure.
func All[T any](tasks ...*Task[T]) *Task[[]T] {
	return New(func(ctx context.Context) ([]T, error) {
		for _, t := range tasks {
			t.Start()
		}
		out := make([]T, len(tasks))
		for i, t := range tasks {
			v, err := awaitWithCancel(ctx, t)
			if err != nil {
				for _, rest := range tasks[i+1:] {
					rest.Cancel()
				}
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
}

// Retry builds a task that re-runs fn under policy until it succeeds, fails
// fatally or runs out of attempts.
func Retry[T any](policy retry.Policy, fn func(ctx context.Context) (T, error), opts ...Option) *Task[T] {
	return New(func(ctx context.Context) (T, error) {
		var value T
		err := retry.Retry(ctx, policy, func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
		return value, err
	}, opts...)
}
