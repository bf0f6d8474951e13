package violation

import (
	"errors"
	"strings"
)

// Violations is an ordered, duplicate-suppressing set of Violation records.
//
// A Violations value is immutable once built: Join returns a new instance.
// The records themselves are shared between instances, which is why TagStep,
// the single mutating operation, is visible through every Violations holding
// the same records.
type Violations struct {
	items []*Violation
}

// Empty returns a Violations with no records.
func Empty() Violations {
	return Violations{}
}

// Violate builds a single-entry Violations.
func Violate(name, message string, opts ...Option) Violations {
	v := &Violation{ValidationName: name, Messages: []string{message}}
	for _, opt := range opts {
		opt(v)
	}
	return Violations{items: []*Violation{v}}
}

// Of builds a Violations from records, dropping structural duplicates.
func Of(records ...Violation) Violations {
	out := Violations{}
	for i := range records {
		out = out.Join(Violations{items: []*Violation{records[i].clone()}})
	}
	return out
}

// Join returns v followed by the records of other that are not already
// structurally present in v. Insertion order is preserved.
func (v Violations) Join(other Violations) Violations {
	if len(other.items) == 0 {
		return v
	}
	seen := make(map[string]struct{}, len(v.items)+len(other.items))
	items := make([]*Violation, 0, len(v.items)+len(other.items))
	for _, item := range v.items {
		key := item.identity()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	for _, item := range other.items {
		key := item.identity()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return Violations{items: items}
}

// TagStep sets StepName on every contained record, in place.
func (v Violations) TagStep(name string) Violations {
	for _, item := range v.items {
		item.StepName = name
	}
	return v
}

func (v Violations) Len() int {
	return len(v.items)
}

func (v Violations) IsEmpty() bool {
	return len(v.items) == 0
}

// All returns copies of the contained records.
func (v Violations) All() []Violation {
	out := make([]Violation, 0, len(v.items))
	for _, item := range v.items {
		out = append(out, *item.clone())
	}
	return out
}

// Names returns the validation names in order.
func (v Violations) Names() []string {
	names := make([]string, 0, len(v.items))
	for _, item := range v.items {
		names = append(names, item.ValidationName)
	}
	return names
}

// Has reports whether a record with the given validation name is present.
func (v Violations) Has(name string) bool {
	for _, item := range v.items {
		if item.ValidationName == name {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity among the records.
func (v Violations) MaxSeverity() Severity {
	max := SeverityUnspecified
	for _, item := range v.items {
		if s := item.Severity(); s > max {
			max = s
		}
	}
	return max
}

// Contains reports whether every record of other is structurally present in v.
func (v Violations) Contains(other Violations) bool {
	seen := make(map[string]struct{}, len(v.items))
	for _, item := range v.items {
		seen[item.identity()] = struct{}{}
	}
	for _, item := range other.items {
		if _, ok := seen[item.identity()]; !ok {
			return false
		}
	}
	return true
}

// SameSet reports whether v and other hold the same records regardless of order.
func (v Violations) SameSet(other Violations) bool {
	return v.Len() == other.Len() && v.Contains(other) && other.Contains(v)
}

// CollectMessages renders one line per record in insertion order.
func (v Violations) CollectMessages() string {
	lines := make([]string, 0, len(v.items))
	for _, item := range v.items {
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n")
}

// Err returns nil for an empty set, otherwise an error wrapping the set.
func (v Violations) Err() error {
	if v.IsEmpty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error adapts Violations to the error interface for callers that need to
// cross an error-returning boundary.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	return "violations: " + strings.ReplaceAll(e.Violations.CollectMessages(), "\n", "; ")
}

// FromError recovers the Violations carried by an error built with Err.
func FromError(err error) (Violations, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Violations, true
	}
	return Violations{}, false
}
