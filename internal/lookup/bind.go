package lookup

import (
	"context"
	"time"

	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
	"verdict/pkg/task"
)

const FailureLookupFailed = "LOOKUP_FAILED"

// Bind resolves the QuerySpec bound to the context and stores the record
// under the query spec's IntoAttr ("lookup.<name>" when empty). Lookup errors are
// recorded as failures, classified by their error type, so the gate can
// decide; the step itself always passes. Contexts without a spec pass
// through untouched.
func Bind[T any](p Provider, timeout time.Duration) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		spec, ok := behavior.Get(c, inbound.KeyQuerySpec)
		if !ok || spec == nil {
			return behavior.Pass(c)
		}
		query := *spec

		t := task.New(func(ctx context.Context) (map[string]any, error) {
			return p.Fetch(ctx, query)
		})
		if timeout > 0 {
			t = t.WithTimeout(timeout)
		}

		record, err := t.Await(c.Context())
		if err != nil {
			t.Cancel()
			return behavior.Pass(inbound.AddFailure(c, inbound.FailureFromError(FailureLookupFailed, err)))
		}

		into := query.IntoAttr
		if into == "" {
			into = "lookup." + query.Name
		}
		return behavior.Pass(c.WithAttr(into, record))
	}
}
