// Package schema validates message payloads against a JSON Schema.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"verdict/pkg/behavior"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

const (
	ViolationSchema       = "SCHEMA_VIOLATION"
	ViolationSchemaSystem = "SCHEMA_UNREADABLE"
)

// Validator holds one compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func Compile(schemaJSON string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Check validates doc, a Go value that marshals to JSON, and returns one
// violation per schema error, keyed by field.
func (v *Validator) Check(doc any) violation.Violations {
	res, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return violation.Violate(ViolationSchemaSystem, err.Error(), violation.Severe())
	}
	if res.Valid() {
		return violation.Empty()
	}

	entries := make([]result.Entry[violation.Violations, struct{}], 0, len(res.Errors()))
	for _, e := range res.Errors() {
		entries = append(entries, result.Entry[violation.Violations, struct{}]{
			Name: e.Field(),
			Result: result.Failure[violation.Violations, struct{}](violation.Violate(
				ViolationSchema,
				fmt.Sprintf("%s: %s", e.Field(), e.Description()),
				violation.WithField(e.Field()),
				violation.WithOption("rule", e.Type()),
			)),
		})
	}
	return result.MergeEntries(entries...).Err()
}

// Step validates the document projected from the payload.
func Step[T any](v *Validator, doc func(T) any) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		if violations := v.Check(doc(c.Payload())); !violations.IsEmpty() {
			return behavior.Fail[T](violations)
		}
		return behavior.Pass(c)
	}
}
