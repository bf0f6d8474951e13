package gate

import (
	"fmt"
	"time"

	"verdict/pkg/behavior"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
	"verdict/pkg/retry"
)

// Decider renders policy's decision into the context. A panicking policy
// yields FailInternal. clock is consulted only when the scope carries no
// clock reading.
func Decider[T any](policy inbound.DecisionPolicy, clock func() time.Time) behavior.Step[T] {
	if clock == nil {
		clock = time.Now
	}
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		scope := inbound.ScopeOf(c)
		now := scope.Now
		if now.IsZero() {
			now = clock()
		}
		view := scope.View(now)
		return behavior.Pass(behavior.Set(c, inbound.KeyDecision, decide(policy, view)))
	}
}

func decide(policy inbound.DecisionPolicy, view inbound.DecisionView) (d inbound.ControlDecision) {
	defer func() {
		if r := recover(); r != nil {
			d = inbound.FailInternal{Reason: "decision policy panicked", Cause: apperrors.RecoverPanic(r)}
		}
	}()
	d = policy.Decide(view)
	if d == nil {
		d = inbound.FailInternal{Reason: "decision policy returned no decision"}
	}
	return d
}

// RetryPolicy is the default decision policy.
//
// Evaluation order:
//  1. terminal status (acked or dead-lettered): Noop
//  2. internal failure: FailInternal
//  3. duplicate failure: Noop
//  4. expired claims: Dlq
//  5. security, permanent or validation failure: Dlq
//  6. transient failure: Retry with backoff, or Dlq once attempts run out
//  7. otherwise: Ack
type RetryPolicy struct {
	Retry retry.Policy
}

func NewRetryPolicy(p retry.Policy) RetryPolicy {
	return RetryPolicy{Retry: p}
}

func (p RetryPolicy) Decide(v inbound.DecisionView) inbound.ControlDecision {
	if v.Status != nil && v.Status.Kind.Terminal() {
		return inbound.Noop{Reason: fmt.Sprintf("already %s", v.Status.Kind)}
	}
	if f, ok := v.Failures.First(inbound.TaxonomyInternal); ok {
		return inbound.FailInternal{Reason: f.Message, Cause: f.Cause}
	}
	if v.Failures.Has(inbound.TaxonomyDuplicate) {
		return inbound.Noop{Reason: "duplicate"}
	}
	if v.Claims.Expired(v.Now) {
		return inbound.Dlq{Reason: "claims expired"}
	}
	if f, ok := v.Failures.FirstOf(inbound.TaxonomySecurity, inbound.TaxonomyPermanent, inbound.TaxonomyValidation); ok {
		return inbound.Dlq{Reason: fmt.Sprintf("%s: %s", f.Code, f.Message)}
	}
	if f, ok := v.Failures.First(inbound.TaxonomyTransient); ok {
		attempt := v.Attempt()
		if p.Retry.Exhausted(attempt) {
			return inbound.Dlq{Reason: "max attempts exceeded"}
		}
		return inbound.Retry{
			NextRetryAt: p.Retry.NextRetryAt(v.Now, attempt),
			Reason:      fmt.Sprintf("%s: %s", f.Code, f.Message),
		}
	}
	return inbound.Ack{}
}
