// Package cel is the expression evaluator used by routing and correlation
// rules. Expressions see the message under the variable "root" plus any
// caller-supplied variables, all dynamically typed.
package cel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/ext"
)

const RootVariable = "root"

type Evaluator struct {
	base *cel.Env

	mu       sync.RWMutex
	envs     map[string]*cel.Env
	programs map[string]cel.Program
}

func NewEvaluator(opts ...cel.EnvOption) (*Evaluator, error) {
	opts = append([]cel.EnvOption{
		cel.Variable(RootVariable, cel.DynType),
		ext.Strings(),
	}, opts...)

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		base:     env,
		envs:     make(map[string]*cel.Env),
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate runs expression with root bound to "root" and every entry of
// variables bound under its name.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, variables map[string]any, root any) (any, error) {
	names := variableNames(variables)
	program, err := e.program(expression, names, false)
	if err != nil {
		return nil, err
	}

	activation := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		activation[k] = v
	}
	activation[RootVariable] = root

	out, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}
	return out.Value(), nil
}

// EvaluateBool is Evaluate for predicates.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, variables map[string]any, root any) (bool, error) {
	value, err := e.Evaluate(ctx, expression, variables, root)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", value)
	}
	return b, nil
}

// Validate compiles expression against root plus the named variables.
func (e *Evaluator) Validate(expression string, variables ...string) error {
	_, err := e.compile(expression, normalizeNames(variables), false)
	return err
}

// ValidateBool additionally rejects expressions whose static type cannot be
// bool.
func (e *Evaluator) ValidateBool(expression string, variables ...string) error {
	_, err := e.compile(expression, normalizeNames(variables), true)
	return err
}

func (e *Evaluator) program(expression string, names []string, wantBool bool) (cel.Program, error) {
	key := strings.Join(names, ",") + "\x00" + expression

	e.mu.RLock()
	program, ok := e.programs[key]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.compile(expression, names, wantBool)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[key] = program
	e.mu.Unlock()
	return program, nil
}

func (e *Evaluator) compile(expression string, names []string, wantBool bool) (cel.Program, error) {
	env, err := e.env(names)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if wantBool && ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

func (e *Evaluator) env(names []string) (*cel.Env, error) {
	if len(names) == 0 {
		return e.base, nil
	}
	key := strings.Join(names, ",")

	e.mu.RLock()
	env, ok := e.envs[key]
	e.mu.RUnlock()
	if ok {
		return env, nil
	}

	decls := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		decls = append(decls, cel.Variable(name, cel.DynType))
	}
	env, err := e.base.Extend(decls...)
	if err != nil {
		return nil, fmt.Errorf("failed to extend CEL environment: %w", err)
	}

	e.mu.Lock()
	e.envs[key] = env
	e.mu.Unlock()
	return env, nil
}

// SetValue writes value at the path named by expression inside root. The
// expression must be a field path such as root.a.b or root["a"].b; the
// leading root is optional. Intermediate maps are created as needed.
func (e *Evaluator) SetValue(expression string, root any, value any) error {
	target, ok := root.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set %q: root is %T, not map[string]any", expression, root)
	}

	parsed, issues := e.base.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to parse path %q: %w", expression, issues.Err())
	}

	path, err := fieldPath(parsed.NativeRep().Expr())
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", expression, err)
	}
	if len(path) > 0 && path[0] == RootVariable {
		path = path[1:]
	}
	if len(path) == 0 {
		return fmt.Errorf("invalid path %q: no field to set", expression)
	}

	current := target
	for _, field := range path[:len(path)-1] {
		next, exists := current[field]
		if !exists || next == nil {
			child := make(map[string]any)
			current[field] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %q: %s is %T, not a map", expression, field, next)
		}
		current = child
	}
	current[path[len(path)-1]] = value
	return nil
}

func fieldPath(expr celast.Expr) ([]string, error) {
	switch expr.Kind() {
	case celast.IdentKind:
		return []string{expr.AsIdent()}, nil
	case celast.SelectKind:
		sel := expr.AsSelect()
		if sel.IsTestOnly() {
			return nil, fmt.Errorf("has() is not a path")
		}
		parent, err := fieldPath(sel.Operand())
		if err != nil {
			return nil, err
		}
		return append(parent, sel.FieldName()), nil
	case celast.CallKind:
		call := expr.AsCall()
		if call.FunctionName() != operators.Index || len(call.Args()) != 2 {
			return nil, fmt.Errorf("unsupported call %s", call.FunctionName())
		}
		key := call.Args()[1]
		if key.Kind() != celast.LiteralKind {
			return nil, fmt.Errorf("index must be a literal")
		}
		field, ok := key.AsLiteral().Value().(string)
		if !ok {
			return nil, fmt.Errorf("index must be a string")
		}
		parent, err := fieldPath(call.Args()[0])
		if err != nil {
			return nil, err
		}
		return append(parent, field), nil
	default:
		return nil, fmt.Errorf("unsupported expression kind %v", expr.Kind())
	}
}

func variableNames(variables map[string]any) []string {
	names := make([]string, 0, len(variables))
	for k := range variables {
		names = append(names, k)
	}
	return normalizeNames(names)
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == RootVariable {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
