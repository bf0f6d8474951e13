package behavior

import (
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

const ViolationAborted = "PIPELINE_ABORTED"

// Pipeline is an ordered list of steps run as a single Chain.
type Pipeline[T any] struct {
	steps []Step[T]
}

func NewPipeline[T any](steps ...Step[T]) *Pipeline[T] {
	return &Pipeline[T]{steps: append([]Step[T](nil), steps...)}
}

func (p *Pipeline[T]) Add(steps ...Step[T]) *Pipeline[T] {
	p.steps = append(p.steps, steps...)
	return p
}

func (p *Pipeline[T]) Len() int {
	return len(p.steps)
}

// Step returns the pipeline as one composed step.
func (p *Pipeline[T]) Step() Step[T] {
	return Chain(p.steps...)
}

// Run executes the pipeline from an already populated context.
func (p *Pipeline[T]) Run(initial StepContext[T]) Outcome[T] {
	out := p.Step()(initial)
	if out.IsSuccess() && out.Value().Aborted() {
		c := out.Value()
		return Fail[T](c.Violations().Join(violation.Violate(ViolationAborted, "pipeline aborted")))
	}
	return out
}

// Apply runs the pipeline over a fresh context built from payload and
// projects the terminal context. The projector is never called on Failure.
func Apply[T, R any](p *Pipeline[T], payload T, projector func(StepContext[T]) R) result.Result[violation.Violations, R] {
	return ApplyContext(p, NewContext(payload), projector)
}

// ApplyContext is Apply with a caller-built initial context.
func ApplyContext[T, R any](p *Pipeline[T], initial StepContext[T], projector func(StepContext[T]) R) result.Result[violation.Violations, R] {
	return result.Map(p.Run(initial), projector)
}
