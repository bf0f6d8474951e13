// Package correlation checks cross-field rules on a message: a field may be
// required when a condition holds, and its value may have to satisfy a test.
package correlation

import (
	"context"
	"fmt"

	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

const (
	ViolationFieldMissing = "CORRELATION_FIELD_MISSING"
	ViolationValueInvalid = "CORRELATION_VALUE_INVALID"
	ViolationRuleError    = "CORRELATION_RULE_ERROR"
)

// Evaluator is the expression port the rules run on.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, variables map[string]any, root any) (any, error)
	EvaluateBool(ctx context.Context, expression string, variables map[string]any, root any) (bool, error)
	Validate(expression string, variables ...string) error
}

// Rule applies to Field, a path relative to the payload root.
//
// When gates the rule; empty means always. RequiredPresent demands the field
// exists. ValueTest is evaluated with the field bound to "value".
type Rule struct {
	Name            string `mapstructure:"name" json:"name"`
	Field           string `mapstructure:"field" json:"field"`
	When            string `mapstructure:"when" json:"when,omitempty"`
	RequiredPresent bool   `mapstructure:"required_present" json:"required_present"`
	ValueTest       string `mapstructure:"value_test" json:"value_test,omitempty"`
}

func (r Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Field
}

// Variables bound alongside root for every rule expression.
var ruleVariables = []string{"meta", "source", "source_id", "attrs", "value"}

// Compile validates every expression up front.
func Compile(ev Evaluator, rules []Rule) error {
	for _, r := range rules {
		if r.Field == "" {
			return fmt.Errorf("correlation rule %q: field is required", r.label())
		}
		for _, expr := range []string{r.When, r.ValueTest, presence(r.Field)} {
			if expr == "" {
				continue
			}
			if err := ev.Validate(expr, ruleVariables...); err != nil {
				return fmt.Errorf("correlation rule %q: %w", r.label(), err)
			}
		}
	}
	return nil
}

// Step checks every rule against the payload projected by root and reports
// all broken rules together.
func Step[T any](ev Evaluator, rules []Rule, root func(T) any) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		doc := root(c.Payload())
		vars := variables(c)

		entries := make([]result.Entry[violation.Violations, struct{}], 0, len(rules))
		for _, r := range rules {
			entries = append(entries, result.Entry[violation.Violations, struct{}]{
				Name:   r.label(),
				Result: check(c.Context(), ev, r, vars, doc),
			})
		}

		merged := result.MergeEntries(entries...)
		if merged.IsFailure() {
			return behavior.Fail[T](merged.Err())
		}
		return behavior.Pass(c)
	}
}

func check(ctx context.Context, ev Evaluator, r Rule, vars map[string]any, doc any) result.Result[violation.Violations, struct{}] {
	ok := result.Success[violation.Violations](struct{}{})
	fail := func(name, msg string) result.Result[violation.Violations, struct{}] {
		return result.Failure[violation.Violations, struct{}](
			violation.Violate(name, msg, violation.WithField(r.Field), violation.WithOption("rule", r.label())),
		)
	}

	if r.When != "" {
		applies, err := ev.EvaluateBool(ctx, r.When, vars, doc)
		if err != nil {
			return fail(ViolationRuleError, fmt.Sprintf("%s: when: %v", r.label(), err))
		}
		if !applies {
			return ok
		}
	}

	present, err := ev.EvaluateBool(ctx, presence(r.Field), vars, doc)
	if err != nil {
		present = false
	}
	if !present {
		if r.RequiredPresent {
			return fail(ViolationFieldMissing, fmt.Sprintf("%s is required", r.Field))
		}
		return ok
	}

	if r.ValueTest == "" {
		return ok
	}
	value, err := ev.Evaluate(ctx, "root."+r.Field, vars, doc)
	if err != nil {
		return fail(ViolationRuleError, fmt.Sprintf("%s: %v", r.label(), err))
	}
	withValue := make(map[string]any, len(vars))
	for k, v := range vars {
		withValue[k] = v
	}
	withValue["value"] = value
	passed, err := ev.EvaluateBool(ctx, r.ValueTest, withValue, doc)
	if err != nil {
		return fail(ViolationRuleError, fmt.Sprintf("%s: value_test: %v", r.label(), err))
	}
	if !passed {
		return fail(ViolationValueInvalid, fmt.Sprintf("%s failed %s", r.Field, r.ValueTest))
	}
	return ok
}

func presence(field string) string {
	return "has(root." + field + ")"
}

func variables[T any](c behavior.StepContext[T]) map[string]any {
	origin, _ := behavior.Get(c, inbound.KeyOrigin)
	meta := make(map[string]any, len(origin.Meta))
	for k, v := range origin.Meta {
		meta[k] = v
	}
	return map[string]any{
		"meta":      meta,
		"source":    origin.Source.String(),
		"source_id": origin.SourceID,
		"attrs":     c.Attributes(),
		"value":     nil,
	}
}
