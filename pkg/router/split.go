package router

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"verdict/pkg/behavior"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

const (
	ViolationSplitNotMatched = "SPLIT_PREDICATE_NOT_MATCHED"
	ViolationSplitRejected   = "SPLIT_ITEMS_REJECTED"
)

// Split extracts items when predicate holds and stores them under key. A nil
// verifier accepts any non-empty list.
func Split[T, I any](
	predicate func(behavior.StepContext[T]) bool,
	extractor func(behavior.StepContext[T]) []I,
	verifier func([]I) bool,
	key behavior.AttrKey[[]I],
) behavior.Step[T] {
	if verifier == nil {
		verifier = func(items []I) bool { return len(items) > 0 }
	}
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		if !predicate(c) {
			return behavior.Fail[T](violation.Violate(ViolationSplitNotMatched, "predicate not matched"))
		}
		items := extractor(c)
		if !verifier(items) {
			return behavior.Fail[T](violation.Violate(ViolationSplitRejected,
				fmt.Sprintf("%d item(s) rejected for %s", len(items), key.Name())))
		}
		return behavior.Pass(behavior.Set(c, key, items))
	}
}

// Each runs step over every item stored under key, each in its own context
// carrying a copy of the parent's attributes. All item failures are
// reported together; on success the resulting items replace the stored ones.
func Each[T, I any](key behavior.AttrKey[[]I], step behavior.Step[I]) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		items, ok := behavior.Get(c, key)
		if !ok {
			return behavior.Pass(c)
		}

		entries := make([]result.Entry[violation.Violations, I], 0, len(items))
		for i, item := range items {
			child := behavior.NewContextWith(c.Context(), item).WithAttributes(c.Attributes())
			out := result.Map(step(child), func(done behavior.StepContext[I]) I { return done.Payload() })
			name := fmt.Sprintf("%s[%d]", key.Name(), i)
			entries = append(entries, result.Entry[violation.Violations, I]{
				Name:   name,
				Result: out.PeekError(func(v violation.Violations) { v.TagStep(name) }),
			})
		}

		merged := result.MergeEntries(entries...)
		if merged.IsFailure() {
			return behavior.Fail[T](merged.Err())
		}
		processed := make([]I, len(items))
		for i := range items {
			processed[i] = merged.Value()[fmt.Sprintf("%s[%d]", key.Name(), i)]
		}
		return behavior.Pass(behavior.Set(c, key, processed))
	}
}

// JSONItems returns an extractor for the array at path (gjson syntax) in the
// JSON form of the payload. Non-array results yield no items.
func JSONItems[T any](path string) func(behavior.StepContext[T]) []any {
	return func(c behavior.StepContext[T]) []any {
		raw, err := json.Marshal(c.Payload())
		if err != nil {
			return nil
		}
		found := gjson.GetBytes(raw, path)
		if !found.IsArray() {
			return nil
		}
		elems := found.Array()
		items := make([]any, 0, len(elems))
		for _, e := range elems {
			items = append(items, e.Value())
		}
		return items
	}
}
