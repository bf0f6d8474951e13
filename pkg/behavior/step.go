package behavior

import (
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

// Outcome is what a step produces.
type Outcome[T any] = result.Result[violation.Violations, StepContext[T]]

// Step is a unit of pipeline behaviour. Steps are expected to be pure: all
// per-run state travels in the StepContext.
type Step[T any] func(StepContext[T]) Outcome[T]

func Pass[T any](c StepContext[T]) Outcome[T] {
	return result.Success[violation.Violations](c)
}

func Fail[T any](v violation.Violations) Outcome[T] {
	return result.Failure[violation.Violations, StepContext[T]](v)
}

func Identity[T any]() Step[T] {
	return Pass[T]
}

// Chain runs steps left to right. The first Failure stops the chain and
// later steps are never invoked; an aborted context stops it as a Success.
// Nil steps are skipped.
func Chain[T any](steps ...Step[T]) Step[T] {
	compact := make([]Step[T], 0, len(steps))
	for _, s := range steps {
		if s != nil {
			compact = append(compact, s)
		}
	}
	return func(c StepContext[T]) Outcome[T] {
		current := Pass(c)
		for _, s := range compact {
			if current.IsFailure() || current.Value().Aborted() {
				return current
			}
			current = s(current.Value())
		}
		return current
	}
}

func (s Step[T]) Then(next Step[T]) Step[T] {
	return Chain(s, next)
}

// When runs step only if predicate holds; otherwise the context passes
// through unchanged.
func When[T any](predicate func(StepContext[T]) bool, step Step[T]) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		if !predicate(c) {
			return Pass(c)
		}
		return step(c)
	}
}

// Filter is Identity().Filter.
func Filter[T any](predicate func(T) bool, build func(T) violation.Violations) Step[T] {
	return Identity[T]().Filter(predicate, build)
}

// Filter tests the payload after a successful run of s. A failing predicate
// turns the outcome into a Failure carrying the context violations joined
// with build(payload).
func (s Step[T]) Filter(predicate func(T) bool, build func(T) violation.Violations) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		out := s(c)
		if out.IsFailure() {
			return out
		}
		next := out.Value()
		if predicate(next.Payload()) {
			return out
		}
		return Fail[T](next.Violations().Join(build(next.Payload())))
	}
}

// Peek observes the context after a successful run of s.
func (s Step[T]) Peek(observer func(StepContext[T])) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return s(c).Peek(observer)
	}
}

// PeekOnError observes the violations after a failed run of s.
func (s Step[T]) PeekOnError(observer func(violation.Violations)) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return s(c).PeekError(observer)
	}
}

// Recover converts a Failure of s into a Success when fallback yields a
// payload. The recovered context keeps the input attributes but starts with
// no violations and is not aborted.
func (s Step[T]) Recover(fallback func(violation.Violations) (T, bool)) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		out := s(c)
		if out.IsSuccess() {
			return out
		}
		payload, ok := fallback(out.Err())
		if !ok {
			return out
		}
		fresh := NewContextWith(c.Context(), payload).WithAttributes(c.attributes)
		return Pass(fresh)
	}
}

// Named tags every violation produced by a failed run of s with name.
func (s Step[T]) Named(name string) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return s(c).PeekError(func(v violation.Violations) { v.TagStep(name) })
	}
}

// Lift adapts a payload transformation into a Step.
func Lift[T any](fn func(T) result.Result[violation.Violations, T]) Step[T] {
	return func(c StepContext[T]) Outcome[T] {
		return result.Map(fn(c.Payload()), c.WithPayload)
	}
}
