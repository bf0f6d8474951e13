package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
	"verdict/pkg/metrics"
)

// CacheProvider reads a JSON document stored in Redis. The key is the query
// name with {param} placeholders expanded. Non-JSON values are returned
// under "value".
type CacheProvider struct {
	client redis.UniversalClient
}

func NewCacheProvider(client redis.UniversalClient) *CacheProvider {
	return &CacheProvider{
		client: client,
	}
}

func (p *CacheProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	if spec.Name == "" {
		return nil, apperrors.ErrValidation.WithMessage("key pattern is required for cache lookups")
	}

	key, _ := expand(spec.Name, spec.Params)

	val, err := p.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("cache key not found: %s", key))
	}
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("redis get failed").WithCause(err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return map[string]any{
			"value": val,
		}, nil
	}

	return result, nil
}

// CachedProvider is a read-through Redis cache in front of another
// provider. Cache failures fall through to the inner provider.
type CachedProvider struct {
	inner  Provider
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewCachedProvider(inner Provider, client redis.UniversalClient, prefix string, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, client: client, prefix: prefix, ttl: ttl}
}

func (p *CachedProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	key := cacheKey(p.prefix, spec)

	if raw, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var cached map[string]any
		if json.Unmarshal(raw, &cached) == nil {
			metrics.IncLookupCache(true)
			return cached, nil
		}
	}
	metrics.IncLookupCache(false)

	out, err := p.inner.Fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	if body, err := json.Marshal(out); err == nil {
		p.client.Set(ctx, key, body, p.ttl)
	}
	return out, nil
}
