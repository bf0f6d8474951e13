package inbound

import "time"

// DecisionView is the read-only snapshot a DecisionPolicy decides from.
type DecisionView struct {
	Source    Source
	SourceID  string
	Meta      map[string]string
	Status    *Status
	Failures  Failures
	Claims    *Claims
	QuerySpec *QuerySpec
	Now       time.Time
}

// DecisionPolicy maps a view to a decision. Implementations must be pure:
// equal views yield equal decisions.
type DecisionPolicy interface {
	Decide(view DecisionView) ControlDecision
}

type PolicyFunc func(DecisionView) ControlDecision

func (f PolicyFunc) Decide(v DecisionView) ControlDecision { return f(v) }

// Attempt returns the recorded attempt count, zero without a status.
func (v DecisionView) Attempt() int {
	if v.Status == nil {
		return 0
	}
	return v.Status.Attempt
}
