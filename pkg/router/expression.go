package router

import (
	"context"
	"fmt"
	"sort"

	"verdict/pkg/behavior"
)

// Evaluator is the expression port used by ExpressionDecider.
type Evaluator interface {
	EvaluateBool(ctx context.Context, expression string, variables map[string]any, root any) (bool, error)
	ValidateBool(expression string, variables ...string) error
}

// RouteRule sends a message to Key when Expression holds. Higher priority
// rules are tried first; ties keep declaration order.
type RouteRule struct {
	Name       string
	Expression string
	Priority   int
	Key        RouteKey
}

// Bindings projects a context into the root and variables an expression sees.
type Bindings[T any] func(behavior.StepContext[T]) (root any, variables map[string]any)

// ExpressionDecider compiles rules and returns a decider for Select. A rule
// whose evaluation fails is skipped and reported through onError. When no
// rule matches the fallback key is chosen.
func ExpressionDecider[T any](
	ev Evaluator,
	rules []RouteRule,
	fallback RouteKey,
	bind Bindings[T],
	variableNames []string,
	onError func(rule RouteRule, err error),
) (func(behavior.StepContext[T]) RouteKey, error) {
	ordered := append([]RouteRule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	for _, r := range ordered {
		if err := ev.ValidateBool(r.Expression, variableNames...); err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Name, err)
		}
	}

	return func(c behavior.StepContext[T]) RouteKey {
		root, vars := bind(c)
		for _, r := range ordered {
			matched, err := ev.EvaluateBool(c.Context(), r.Expression, vars, root)
			if err != nil {
				if onError != nil {
					onError(r, err)
				}
				continue
			}
			if matched {
				return r.Key
			}
		}
		return fallback
	}, nil
}
