package inbound

import (
	"time"

	"verdict/pkg/behavior"
)

// Attribute keys under which the inbound scope is bound to a StepContext.
var (
	KeyOrigin    = behavior.Key[Origin]("inbound.origin")
	KeyClaims    = behavior.Key[*Claims]("inbound.claims")
	KeyQuerySpec = behavior.Key[*QuerySpec]("inbound.query_spec")
	KeyStatus    = behavior.Key[*Status]("inbound.status")
	KeyFailures  = behavior.Key[Failures]("inbound.failures")
	KeyDecision  = behavior.Key[ControlDecision]("inbound.decision")
	KeyNow       = behavior.Key[time.Time]("inbound.now")
)

// Scope is the inbound state read back from a StepContext.
type Scope struct {
	Origin    Origin
	Claims    *Claims
	QuerySpec *QuerySpec
	Status    *Status
	Failures  Failures
	Now       time.Time
}

func ScopeOf[T any](c behavior.StepContext[T]) Scope {
	s := Scope{}
	s.Origin, _ = behavior.Get(c, KeyOrigin)
	s.Claims, _ = behavior.Get(c, KeyClaims)
	s.QuerySpec, _ = behavior.Get(c, KeyQuerySpec)
	s.Status, _ = behavior.Get(c, KeyStatus)
	s.Failures, _ = behavior.Get(c, KeyFailures)
	s.Now, _ = behavior.Get(c, KeyNow)
	return s
}

// View builds the decision snapshot, falling back to now when the scope
// carries no clock reading.
func (s Scope) View(now time.Time) DecisionView {
	if !s.Now.IsZero() {
		now = s.Now
	}
	return DecisionView{
		Source:    s.Origin.Source,
		SourceID:  s.Origin.SourceID,
		Meta:      s.Origin.Meta,
		Status:    s.Status,
		Failures:  append(Failures(nil), s.Failures...),
		Claims:    s.Claims,
		QuerySpec: s.QuerySpec,
		Now:       now,
	}
}

// AddFailure appends f to the collected failures.
func AddFailure[T any](c behavior.StepContext[T], f Failure) behavior.StepContext[T] {
	existing, _ := behavior.Get(c, KeyFailures)
	next := make(Failures, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, f)
	return behavior.Set(c, KeyFailures, next)
}

// DecisionOf returns the decision rendered into c, if any.
func DecisionOf[T any](c behavior.StepContext[T]) (ControlDecision, bool) {
	return behavior.Get(c, KeyDecision)
}
