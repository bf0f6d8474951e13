package gate

import (
	"fmt"
	"strings"

	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

// Requirement checks one typed parameter of a query spec.
type Requirement interface {
	Name() string
	Check(params inbound.QuerySpecParams) violation.Violations
}

type requirement[V any] struct {
	key behavior.AttrKey[V]
}

// Requires declares that key must be present and convertible to V.
func Requires[V any](key behavior.AttrKey[V]) Requirement {
	return requirement[V]{key: key}
}

func (r requirement[V]) Name() string { return r.key.Name() }

func (r requirement[V]) Check(params inbound.QuerySpecParams) violation.Violations {
	return result.Fold(inbound.RequireParam(params, r.key),
		func(v violation.Violations) violation.Violations { return v },
		func(V) violation.Violations { return violation.Empty() },
	)
}

// QuerySpecBinder resolves the template's parameter placeholders against
// the inbound origin, checks every requirement and binds the query spec. All
// requirement failures are reported together.
//
// A string parameter of the form "${meta.<key>}" takes the meta value,
// "${source_id}" the source id and "${source}" the source name. A
// placeholder that resolves to nothing removes the parameter.
func QuerySpecBinder[T any](template inbound.QuerySpec, reqs ...Requirement) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		origin, _ := behavior.Get(c, inbound.KeyOrigin)
		spec := template
		spec.Params = resolveParams(template.Params, origin)

		entries := make([]result.Entry[violation.Violations, struct{}], 0, len(reqs))
		for _, req := range reqs {
			r := result.Success[violation.Violations](struct{}{})
			if v := req.Check(spec.Params); !v.IsEmpty() {
				r = result.Failure[violation.Violations, struct{}](v)
			}
			entries = append(entries, result.Entry[violation.Violations, struct{}]{Name: req.Name(), Result: r})
		}
		checked := result.MergeEntries(entries...)
		if checked.IsFailure() {
			return behavior.Fail[T](checked.Err())
		}
		return behavior.Pass(behavior.Set(c, inbound.KeyQuerySpec, &spec))
	}
}

func resolveParams(params inbound.QuerySpecParams, origin inbound.Origin) inbound.QuerySpecParams {
	out := make(inbound.QuerySpecParams, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
			out[k] = v
			continue
		}
		if resolved, ok := placeholder(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}"), origin); ok {
			out[k] = resolved
		}
	}
	return out
}

func placeholder(ref string, origin inbound.Origin) (string, bool) {
	switch {
	case ref == "source_id":
		return origin.SourceID, origin.SourceID != ""
	case ref == "source":
		return origin.Source.String(), true
	case strings.HasPrefix(ref, "meta."):
		v, ok := origin.Meta[strings.TrimPrefix(ref, "meta.")]
		return v, ok && v != ""
	default:
		return fmt.Sprintf("${%s}", ref), false
	}
}
