package inbound

import (
	"verdict/pkg/behavior"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

// QuerySpec describes a lookup whose result is written into an attribute.
type QuerySpec struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Params   QuerySpecParams `json:"params,omitempty"`
	IntoAttr string          `json:"into_attr"`
}

// QuerySpecParams is an untyped parameter bag read through typed keys.
type QuerySpecParams map[string]any

func (p QuerySpecParams) Clone() QuerySpecParams {
	out := make(QuerySpecParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Param reads a typed parameter.
func Param[V any](p QuerySpecParams, key behavior.AttrKey[V]) (V, bool) {
	return behavior.Lookup(map[string]any(p), key)
}

// RequireParam reads a typed parameter, failing with a violation when it is
// missing or cannot be converted.
func RequireParam[V any](p QuerySpecParams, key behavior.AttrKey[V]) result.Result[violation.Violations, V] {
	return behavior.RequireValue(map[string]any(p), key)
}
