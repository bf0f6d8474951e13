package status

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"verdict/pkg/inbound"
)

func TestRedisStore_Container(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv("VERDICT_CONTAINER_TESTS") == "" {
		t.Skip("set VERDICT_CONTAINER_TESTS=1 to run container tests")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	s := NewRedisStore(client, "it:status:", time.Minute)
	require.NoError(t, s.Put(ctx, "m-1", inbound.Status{Kind: inbound.StatusAcked, Attempt: 1}))

	got, err := s.Status(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inbound.StatusAcked, got.Kind)
}
