package lookup

import (
	"context"

	"verdict/internal/config"
	"verdict/pkg/circuitbreaker"
	"verdict/pkg/inbound"
)

type circuitBreakerProvider struct {
	provider Provider
	cb       *circuitbreaker.Wrapper
}

func (p *circuitBreakerProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	return circuitbreaker.Execute(ctx, p.cb, func(ctx context.Context) (map[string]any, error) {
		return p.provider.Fetch(ctx, spec)
	})
}

// WrapWithCircuitBreaker guards p with a breaker named name. It returns p
// unchanged when breakers are disabled.
func WrapWithCircuitBreaker(p Provider, name string, cfg config.CircuitBreakerConfig) Provider {
	if !cfg.Enabled {
		return p
	}

	cbConfig := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
		cbConfig.MinRequests = cfg.MinRequests
	}

	return &circuitBreakerProvider{
		provider: p,
		cb:       circuitbreaker.NewWrapper(cbConfig),
	}
}
