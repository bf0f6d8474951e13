// Package router dispatches a StepContext to one of several steps and splits
// a message into items that are processed in isolation.
package router

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"verdict/pkg/behavior"
)

// Core is the fixed set of built-in routes.
type Core int

const (
	CoreDefault Core = iota + 1
	CoreEnrich
	CoreDeduplicate
	CoreDeadLetter
)

var cores = []Core{CoreDefault, CoreEnrich, CoreDeduplicate, CoreDeadLetter}

func (c Core) String() string {
	switch c {
	case CoreDefault:
		return "DEFAULT"
	case CoreEnrich:
		return "ENRICH"
	case CoreDeduplicate:
		return "DEDUPLICATE"
	case CoreDeadLetter:
		return "DEAD_LETTER"
	default:
		return fmt.Sprintf("Core(%d)", int(c))
	}
}

const extensionPrefix = "ext:"

// RouteKey names either a core route or an extension.
type RouteKey struct {
	core      Core
	extension string
}

func CoreKey(c Core) RouteKey { return RouteKey{core: c} }

func Extension(name string) RouteKey { return RouteKey{extension: name} }

var (
	Default     = CoreKey(CoreDefault)
	Enrich      = CoreKey(CoreEnrich)
	Deduplicate = CoreKey(CoreDeduplicate)
	DeadLetter  = CoreKey(CoreDeadLetter)
)

func (k RouteKey) IsExtension() bool { return k.extension != "" }

func (k RouteKey) String() string {
	if k.IsExtension() {
		return extensionPrefix + k.extension
	}
	return k.core.String()
}

// ParseRouteKey accepts a core route name or "ext:<name>".
func ParseRouteKey(s string) (RouteKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, extensionPrefix) {
		name := strings.TrimPrefix(s, extensionPrefix)
		if name == "" {
			return RouteKey{}, fmt.Errorf("empty extension route name")
		}
		return Extension(name), nil
	}
	for _, c := range cores {
		if strings.EqualFold(c.String(), s) {
			return CoreKey(c), nil
		}
	}
	return RouteKey{}, fmt.Errorf("unknown route %q", s)
}

// MissingRouteError is the panic value raised by Resolve for an unregistered key.
type MissingRouteError struct {
	Key RouteKey
}

func (e *MissingRouteError) Error() string {
	return fmt.Sprintf("no step registered for route %s", e.Key)
}

// RouteTable maps route keys to steps.
type RouteTable[T any] struct {
	mu     sync.RWMutex
	routes map[RouteKey]behavior.Step[T]
}

func NewRouteTable[T any]() *RouteTable[T] {
	return &RouteTable[T]{routes: make(map[RouteKey]behavior.Step[T])}
}

// Register binds key to step, replacing any previous binding.
func (t *RouteTable[T]) Register(key RouteKey, step behavior.Step[T]) *RouteTable[T] {
	if step == nil {
		panic(fmt.Sprintf("router: nil step for route %s", key))
	}
	t.mu.Lock()
	t.routes[key] = step
	t.mu.Unlock()
	return t
}

// Lookup returns the step for key without panicking.
func (t *RouteTable[T]) Lookup(key RouteKey) (behavior.Step[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.routes[key]
	return s, ok
}

// Resolve returns the step for key. A missing key is a wiring fault and
// panics with *MissingRouteError.
func (t *RouteTable[T]) Resolve(key RouteKey) behavior.Step[T] {
	s, ok := t.Lookup(key)
	if !ok {
		panic(&MissingRouteError{Key: key})
	}
	return s
}

func (t *RouteTable[T]) Keys() []RouteKey {
	t.mu.RLock()
	keys := make([]RouteKey, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
