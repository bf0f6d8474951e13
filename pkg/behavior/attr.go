package behavior

import (
	"fmt"
	"math"
	"time"

	"verdict/pkg/result"
	"verdict/pkg/violation"
)

const (
	ViolationMissingAttribute = "MISSING_ATTRIBUTE"
	ViolationAttributeType    = "ATTRIBUTE_TYPE_MISMATCH"
)

// AttrKey is a typed name for a value held in an attribute or parameter map.
type AttrKey[V any] struct {
	name string
}

func Key[V any](name string) AttrKey[V] {
	return AttrKey[V]{name: name}
}

func (k AttrKey[V]) Name() string   { return k.name }
func (k AttrKey[V]) String() string { return k.name }

// Get reads a typed attribute from the context.
func Get[T, V any](c StepContext[T], key AttrKey[V]) (V, bool) {
	return Lookup(c.attributes, key)
}

// Require reads a typed attribute, failing with a violation when it is
// missing or of the wrong type.
func Require[T, V any](c StepContext[T], key AttrKey[V]) result.Result[violation.Violations, V] {
	return RequireValue(c.attributes, key)
}

// Set writes a typed attribute.
func Set[T, V any](c StepContext[T], key AttrKey[V], value V) StepContext[T] {
	return c.WithAttr(key.name, value)
}

// Lookup reads key from m, converting between numeric representations where
// the conversion is lossless.
func Lookup[V any](m map[string]any, key AttrKey[V]) (V, bool) {
	var zero V
	raw, ok := m[key.name]
	if !ok || raw == nil {
		return zero, false
	}
	return convert[V](raw)
}

func RequireValue[V any](m map[string]any, key AttrKey[V]) result.Result[violation.Violations, V] {
	raw, ok := m[key.name]
	if !ok || raw == nil {
		return result.Failure[violation.Violations, V](violation.Violate(
			ViolationMissingAttribute,
			fmt.Sprintf("%s is required", key.name),
			violation.WithField(key.name),
		))
	}
	v, ok := convert[V](raw)
	if !ok {
		var zero V
		return result.Failure[violation.Violations, V](violation.Violate(
			ViolationAttributeType,
			fmt.Sprintf("%s: expected %T, got %T", key.name, zero, raw),
			violation.WithField(key.name),
		))
	}
	return result.Success[violation.Violations](v)
}

func convert[V any](raw any) (V, bool) {
	if v, ok := raw.(V); ok {
		return v, true
	}
	var zero V
	var out any
	switch any(zero).(type) {
	case int:
		n, ok := asInt64(raw)
		if !ok {
			return zero, false
		}
		out = int(n)
	case int64:
		n, ok := asInt64(raw)
		if !ok {
			return zero, false
		}
		out = n
	case float64:
		switch n := raw.(type) {
		case int:
			out = float64(n)
		case int64:
			out = float64(n)
		case float32:
			out = float64(n)
		default:
			return zero, false
		}
	case time.Duration:
		switch d := raw.(type) {
		case string:
			parsed, err := time.ParseDuration(d)
			if err != nil {
				return zero, false
			}
			out = parsed
		default:
			n, ok := asInt64(raw)
			if !ok {
				return zero, false
			}
			out = time.Duration(n) * time.Millisecond
		}
	default:
		return zero, false
	}
	return out.(V), true
}

func asInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
