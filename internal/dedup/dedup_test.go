package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
)

type failingRepo struct{}

func (failingRepo) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingRepo) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func TestHasher(t *testing.T) {
	msg := map[string]any{"order": map[string]any{"id": 7}, "source": "MQ"}

	for _, algorithm := range []string{"md5", "sha256", "SHA256"} {
		t.Run(algorithm, func(t *testing.T) {
			h := NewHasher(algorithm)
			a, err := h.ComputeHash(msg, []string{"source", "order.id"})
			require.NoError(t, err)
			b, err := h.ComputeHash(map[string]any{"source": "MQ", "order": map[string]any{"id": 7, "note": "x"}}, []string{"source", "order.id"})
			require.NoError(t, err)
			assert.Equal(t, a, b)

			c, err := h.ComputeHash(map[string]any{"source": "MQ", "order": map[string]any{"id": 8}}, []string{"source", "order.id"})
			require.NoError(t, err)
			assert.NotEqual(t, a, c)
		})
	}

	_, err := NewHasher("md5").ComputeHash(msg, nil)
	assert.Error(t, err)
}

func contextFor(sourceID string, payload map[string]any) behavior.StepContext[map[string]any] {
	env := inbound.NewEnvelope(inbound.SourceMQ, sourceID, nil, payload)
	return inbound.Translate(context.Background(), env, inbound.DefaultSchemas(), time.Now())
}

func identity(p map[string]any) map[string]any { return p }

func TestStep_DetectsDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(NewRepository(client), config.DedupConfig{TTL: time.Minute}, logger.NopLogger())
	step := Step(svc, identity)

	first := step(contextFor("m-1", map[string]any{"a": 1}))
	require.True(t, first.IsSuccess())
	assert.Empty(t, inbound.ScopeOf(first.Value()).Failures)
	hash, ok := behavior.Get(first.Value(), KeyHash)
	require.True(t, ok)
	assert.Len(t, hash, 64)

	second := step(contextFor("m-1", map[string]any{"a": 1}))
	failures := inbound.ScopeOf(second.Value()).Failures
	require.Len(t, failures, 1)
	assert.Equal(t, inbound.TaxonomyDuplicate, failures[0].Taxonomy)
	assert.Equal(t, FailureDuplicateMessage, failures[0].Code)

	other := step(contextFor("m-2", map[string]any{"a": 1}))
	assert.Empty(t, inbound.ScopeOf(other.Value()).Failures)

	mr.FastForward(2 * time.Minute)
	again := step(contextFor("m-1", map[string]any{"a": 1}))
	assert.Empty(t, inbound.ScopeOf(again.Value()).Failures)
}

func TestService_ReleaseClaims(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(NewRepository(client), config.DedupConfig{TTL: time.Minute}, logger.NopLogger())
	step := Step(svc, identity)

	ctx, claims := WithClaims(context.Background())
	first := step(contextFor("m-1", map[string]any{"a": 1}).WithContext(ctx))
	require.True(t, first.IsSuccess())
	keys := claims.Keys()
	require.Len(t, keys, 1)
	assert.True(t, mr.Exists(keys[0]))

	// A repeat under the same claims is not recorded: it did not claim anything.
	repeat := step(contextFor("m-1", map[string]any{"a": 1}).WithContext(ctx))
	require.Len(t, inbound.ScopeOf(repeat.Value()).Failures, 1)
	assert.Len(t, claims.Keys(), 1)

	require.NoError(t, svc.Release(context.Background(), claims))
	assert.Empty(t, claims.Keys())
	assert.False(t, mr.Exists(keys[0]))

	again := step(contextFor("m-1", map[string]any{"a": 1}))
	assert.Empty(t, inbound.ScopeOf(again.Value()).Failures)

	assert.NoError(t, svc.Release(context.Background(), nil))
}

func TestService_ReleaseError(t *testing.T) {
	svc := NewService(failingRepo{}, config.DedupConfig{}, logger.NopLogger())
	claims := &Claims{}
	claims.add("dedup:abc")
	assert.Error(t, svc.Release(context.Background(), claims))
}

func TestStep_RedisErrors(t *testing.T) {
	tests := []struct {
		name         string
		onRedisError string
		wantFailures int
	}{
		{name: "allow", onRedisError: "allow", wantFailures: 0},
		{name: "retry", onRedisError: "retry", wantFailures: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(failingRepo{}, config.DedupConfig{OnRedisError: tt.onRedisError}, logger.NopLogger())
			out := Step(svc, identity)(contextFor("m-1", map[string]any{}))
			require.True(t, out.IsSuccess())
			failures := inbound.ScopeOf(out.Value()).Failures
			require.Len(t, failures, tt.wantFailures)
			if tt.wantFailures > 0 {
				assert.Equal(t, inbound.TaxonomyTransient, failures[0].Taxonomy)
				assert.Equal(t, FailureDedupUnavailable, failures[0].Code)
			}
		})
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	repo := WithCircuitBreaker(failingRepo{}, config.CircuitBreakerConfig{Enabled: true, MinRequests: 1, FailureRatio: 0.5, Timeout: time.Minute})
	_, err := repo.SetNX(context.Background(), "k", 1, time.Minute)
	require.Error(t, err)
	_, err = repo.SetNX(context.Background(), "k", 1, time.Minute)
	assert.Contains(t, err.Error(), "SERVICE_UNAVAILABLE")
}
