package router

import "verdict/pkg/behavior"

// RouteAttr records the key chosen by Select.
var RouteAttr = behavior.Key[RouteKey]("router.route")

// Select runs exactly one branch: the step resolver returns for the key
// decider picks. The chosen key is recorded under RouteAttr.
func Select[T any](decider func(behavior.StepContext[T]) RouteKey, resolver func(RouteKey) behavior.Step[T]) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		key := decider(c)
		return resolver(key)(behavior.Set(c, RouteAttr, key))
	}
}
