// Package behavior implements the step algebra: composable functions from a
// StepContext to a Result of StepContext, and the Pipeline that runs them.
package behavior

import (
	"context"

	"verdict/pkg/violation"
)

// StepContext is the immutable per-run state passed between steps. Every
// With* method returns a new value; attributes are copied on write so a
// context handed to one branch is never changed by another.
type StepContext[T any] struct {
	ctx        context.Context
	payload    T
	violations violation.Violations
	attributes map[string]any
	aborted    bool
}

func NewContext[T any](payload T) StepContext[T] {
	return NewContextWith(context.Background(), payload)
}

// NewContextWith binds a Go context for steps that block on I/O.
func NewContextWith[T any](ctx context.Context, payload T) StepContext[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return StepContext[T]{ctx: ctx, payload: payload}
}

// Context returns the Go context bound to this run.
func (c StepContext[T]) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c StepContext[T]) Payload() T                       { return c.payload }
func (c StepContext[T]) Violations() violation.Violations { return c.violations }
func (c StepContext[T]) Aborted() bool                    { return c.aborted }

func (c StepContext[T]) Attr(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Attributes returns a copy of the attribute map.
func (c StepContext[T]) Attributes() map[string]any {
	out := make(map[string]any, len(c.attributes))
	for k, v := range c.attributes {
		out[k] = v
	}
	return out
}

func (c StepContext[T]) WithContext(ctx context.Context) StepContext[T] {
	c.ctx = ctx
	return c
}

func (c StepContext[T]) WithPayload(payload T) StepContext[T] {
	c.payload = payload
	return c
}

func (c StepContext[T]) WithAttr(key string, value any) StepContext[T] {
	attrs := make(map[string]any, len(c.attributes)+1)
	for k, v := range c.attributes {
		attrs[k] = v
	}
	attrs[key] = value
	c.attributes = attrs
	return c
}

func (c StepContext[T]) WithoutAttr(key string) StepContext[T] {
	if _, ok := c.attributes[key]; !ok {
		return c
	}
	attrs := make(map[string]any, len(c.attributes))
	for k, v := range c.attributes {
		if k != key {
			attrs[k] = v
		}
	}
	c.attributes = attrs
	return c
}

// WithAttributes replaces the whole attribute map with a copy of attrs.
func (c StepContext[T]) WithAttributes(attrs map[string]any) StepContext[T] {
	cp := make(map[string]any, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	c.attributes = cp
	return c
}

// AddViolations joins v into the accumulated violations.
func (c StepContext[T]) AddViolations(v violation.Violations) StepContext[T] {
	c.violations = c.violations.Join(v)
	return c
}

func (c StepContext[T]) ClearViolations() StepContext[T] {
	c.violations = violation.Empty()
	return c
}

// Abort marks the run as stopped. Chain does not invoke further steps and
// Pipeline reports the run as a failure.
func (c StepContext[T]) Abort() StepContext[T] {
	c.aborted = true
	return c
}
