// Package gate assembles the stateful decision gate: bind claims, bind the
// query spec, observe status, then decide. Binders report structural
// problems as violations and stop the gate; everything after binding is a
// business fault handed to the decision policy.
package gate

import (
	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

// Verdict is what a host receives when the gate completes.
type Verdict[T any] struct {
	Decision   inbound.ControlDecision
	Violations violation.Violations
	Context    behavior.StepContext[T]
}

type StatefulGate[T any] struct {
	claimsBinder    behavior.Step[T]
	querySpecBinder behavior.Step[T]
	statusObserver  behavior.Step[T]
	decider         behavior.Step[T]
}

type Option[T any] func(*StatefulGate[T])

func WithClaimsBinder[T any](s behavior.Step[T]) Option[T] {
	return func(g *StatefulGate[T]) { g.claimsBinder = s }
}

func WithQuerySpecBinder[T any](s behavior.Step[T]) Option[T] {
	return func(g *StatefulGate[T]) { g.querySpecBinder = s }
}

func WithStatusObserver[T any](s behavior.Step[T]) Option[T] {
	return func(g *StatefulGate[T]) { g.statusObserver = s }
}

// New builds a gate around decider. Stages not supplied are skipped.
func New[T any](decider behavior.Step[T], opts ...Option[T]) *StatefulGate[T] {
	g := &StatefulGate[T]{decider: decider}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Step returns the gate as one step: claims, query spec, status, decider.
func (g *StatefulGate[T]) Step() behavior.Step[T] {
	return behavior.Chain(
		named(g.claimsBinder, "claims-binder"),
		named(g.querySpecBinder, "query-spec-binder"),
		named(g.statusObserver, "status-observer"),
		named(g.decider, "decider"),
	)
}

// Evaluate runs the gate. A binder failure yields the violations and no
// decision. A run that completes without rendering a decision yields
// FailInternal.
func (g *StatefulGate[T]) Evaluate(c behavior.StepContext[T]) result.Result[violation.Violations, Verdict[T]] {
	return result.Map(g.Step()(c), func(out behavior.StepContext[T]) Verdict[T] {
		decision, ok := inbound.DecisionOf(out)
		if !ok {
			decision = inbound.FailInternal{Reason: "no decision rendered"}
		}
		return Verdict[T]{Decision: decision, Violations: out.Violations(), Context: out}
	})
}

func named[T any](s behavior.Step[T], name string) behavior.Step[T] {
	if s == nil {
		return nil
	}
	return s.Named(name)
}
