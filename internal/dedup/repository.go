package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"verdict/internal/config"
	"verdict/pkg/circuitbreaker"
)

type Repository interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type RedisRepository struct {
	client redis.UniversalClient
}

func NewRepository(client redis.UniversalClient) Repository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	success, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return success, nil
}

func (r *RedisRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

type circuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

// WithCircuitBreaker guards repo with a breaker when enabled.
func WithCircuitBreaker(repo Repository, cfg config.CircuitBreakerConfig) Repository {
	if !cfg.Enabled {
		return repo
	}
	cbConfig := circuitbreaker.DefaultConfig("dedup-redis")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
		cbConfig.MinRequests = cfg.MinRequests
	}
	return &circuitBreakerRepository{repo: repo, cb: circuitbreaker.NewWrapper(cbConfig)}
}

func (r *circuitBreakerRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (bool, error) {
		return r.repo.SetNX(ctx, key, value, ttl)
	})
}

func (r *circuitBreakerRepository) Delete(ctx context.Context, keys ...string) error {
	_, err := circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.repo.Delete(ctx, keys...)
	})
	return err
}
