package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"verdict/pkg/behavior"
)

const stepTracerName = "verdict-pipeline"

// Traced runs step inside a span named after it. Failures set the span
// status to error and record the violation names.
func Traced[T any](name string, step behavior.Step[T]) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		ctx, span := GetTracer(stepTracerName).Start(c.Context(), name)
		defer span.End()

		out := step(c.WithContext(ctx))
		if out.IsFailure() {
			span.SetAttributes(attribute.StringSlice("verdict.violations", out.Err().Names()))
			span.SetStatus(codes.Error, out.Err().CollectMessages())
			return out
		}
		span.SetAttributes(attribute.Bool("verdict.aborted", out.Value().Aborted()))
		// Restore the caller's context so spans do not nest across siblings.
		return behavior.Pass(out.Value().WithContext(c.Context()))
	}
}
