// Package lookup resolves a message's QuerySpec against an external store
// and binds the result into the step context.
package lookup

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"verdict/pkg/inbound"
	"verdict/pkg/metrics"
)

// Provider fetches the single record a QuerySpec describes. A missing
// record is reported as apperrors.ErrNotFound.
type Provider interface {
	Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error)
}

type ProviderFunc func(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error)

func (f ProviderFunc) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	return f(ctx, spec)
}

// Registry maps a QuerySpec type to its provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(kind string, p Provider) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
	return r
}

// Fetch dispatches on spec.Type.
func (r *Registry) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	r.mu.RLock()
	p, ok := r.providers[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no lookup provider registered for type %q", spec.Type)
	}
	return p.Fetch(ctx, spec)
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Instrument records request counts and latency for p under name.
func Instrument(name string, p Provider) Provider {
	return ProviderFunc(func(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
		started := time.Now()
		out, err := p.Fetch(ctx, spec)
		metrics.ObserveLookupDuration(name, time.Since(started))
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.IncLookupRequest(name, status)
		return out, err
	})
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// expand substitutes {param} references in pattern and reports which
// parameters were consumed.
func expand(pattern string, params inbound.QuerySpecParams) (string, map[string]bool) {
	used := make(map[string]bool)
	out := placeholderPattern.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			return m
		}
		used[name] = true
		return fmt.Sprintf("%v", v)
	})
	return out, used
}

// sortedParams returns parameter names in a stable order.
func sortedParams(params inbound.QuerySpecParams, skip map[string]bool) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if skip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cacheKey identifies a spec independently of parameter order.
func cacheKey(prefix string, spec inbound.QuerySpec) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(spec.Type)
	b.WriteByte(':')
	b.WriteString(spec.Name)
	for _, k := range sortedParams(spec.Params, nil) {
		fmt.Fprintf(&b, ":%s=%v", k, spec.Params[k])
	}
	return b.String()
}
