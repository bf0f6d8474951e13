// Package result provides a two-branch Result type whose error side can be
// joined, so independent failures accumulate instead of shadowing each other.
package result

import (
	"fmt"
	"sort"
)

// Joinable is satisfied by error carriers that can absorb another instance.
// Join must be associative.
type Joinable[E any] interface {
	Join(other E) E
}

// Result holds either a value (Success) or a joinable error (Failure).
type Result[E Joinable[E], T any] struct {
	value T
	err   E
	ok    bool
}

func Success[E Joinable[E], T any](value T) Result[E, T] {
	return Result[E, T]{value: value, ok: true}
}

func Failure[E Joinable[E], T any](err E) Result[E, T] {
	return Result[E, T]{err: err}
}

func (r Result[E, T]) IsSuccess() bool { return r.ok }
func (r Result[E, T]) IsFailure() bool { return !r.ok }

// Value returns the success value and panics on a Failure.
func (r Result[E, T]) Value() T {
	if !r.ok {
		panic(fmt.Sprintf("result: Value called on Failure: %v", r.err))
	}
	return r.value
}

// Err returns the failure carrier and panics on a Success.
func (r Result[E, T]) Err() E {
	if r.ok {
		panic("result: Err called on Success")
	}
	return r.err
}

// Get returns both branches. Exactly one of them is meaningful, selected by ok.
func (r Result[E, T]) Get() (value T, err E, ok bool) {
	return r.value, r.err, r.ok
}

func (r Result[E, T]) OrElse(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// Filter turns a Success whose value fails predicate into Failure(onFailure).
func (r Result[E, T]) Filter(predicate func(T) bool, onFailure E) Result[E, T] {
	if r.ok && !predicate(r.value) {
		return Failure[E, T](onFailure)
	}
	return r
}

// Peek runs observer on the success value and returns r unchanged.
func (r Result[E, T]) Peek(observer func(T)) Result[E, T] {
	if r.ok {
		observer(r.value)
	}
	return r
}

// PeekError runs observer on the failure carrier and returns r unchanged.
func (r Result[E, T]) PeekError(observer func(E)) Result[E, T] {
	if !r.ok {
		observer(r.err)
	}
	return r
}

// MapError rewrites the failure carrier, leaving a Success untouched.
func (r Result[E, T]) MapError(fn func(E) E) Result[E, T] {
	if r.ok {
		return r
	}
	return Failure[E, T](fn(r.err))
}

func Map[E Joinable[E], T, U any](r Result[E, T], fn func(T) U) Result[E, U] {
	if !r.ok {
		return Failure[E, U](r.err)
	}
	return Success[E](fn(r.value))
}

func FlatMap[E Joinable[E], T, U any](r Result[E, T], fn func(T) Result[E, U]) Result[E, U] {
	if !r.ok {
		return Failure[E, U](r.err)
	}
	return fn(r.value)
}

func Fold[E Joinable[E], T, U any](r Result[E, T], onFailure func(E) U, onSuccess func(T) U) U {
	if !r.ok {
		return onFailure(r.err)
	}
	return onSuccess(r.value)
}

// Merge combines two results. Both successes yield combine(a, b); any
// failures are joined, a's first.
func Merge[E Joinable[E], A, B, C any](a Result[E, A], b Result[E, B], combine func(A, B) C) Result[E, C] {
	switch {
	case a.ok && b.ok:
		return Success[E](combine(a.value, b.value))
	case !a.ok && !b.ok:
		return Failure[E, C](a.err.Join(b.err))
	case !a.ok:
		return Failure[E, C](a.err)
	default:
		return Failure[E, C](b.err)
	}
}

// Entry names one member of a MergeEntries call.
type Entry[E Joinable[E], T any] struct {
	Name   string
	Result Result[E, T]
}

// MergeEntries collects every Success into a map keyed by name. A single
// failing entry is returned as-is; two or more are joined in entry order.
func MergeEntries[E Joinable[E], T any](entries ...Entry[E, T]) Result[E, map[string]T] {
	values := make(map[string]T, len(entries))
	var (
		failed bool
		joined E
	)
	for _, entry := range entries {
		if entry.Result.ok {
			values[entry.Name] = entry.Result.value
			continue
		}
		if !failed {
			joined = entry.Result.err
			failed = true
			continue
		}
		joined = joined.Join(entry.Result.err)
	}
	if failed {
		return Failure[E, map[string]T](joined)
	}
	return Success[E](values)
}

// MergeAll is MergeEntries over a map. Go maps carry no insertion order, so
// failures are joined in ascending key order.
func MergeAll[E Joinable[E], T any](results map[string]Result[E, T]) Result[E, map[string]T] {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry[E, T], 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry[E, T]{Name: k, Result: results[k]})
	}
	return MergeEntries(entries...)
}
