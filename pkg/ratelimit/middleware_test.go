package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Allow(t *testing.T) {
	store := NewStore(RateLimitConfig{RPS: 1, Burst: 2})

	ok, _ := store.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = store.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, remaining := store.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _ = store.Allow("10.0.0.2")
	assert.True(t, ok, "buckets are per client")
}

func TestStore_Evict(t *testing.T) {
	store := NewStore(RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute})
	store.Allow("a")
	require.Equal(t, 1, store.Len())

	store.Evict(time.Now())
	assert.Equal(t, 1, store.Len())

	store.Evict(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, store.Len())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(NewStore(RateLimitConfig{RPS: 1, Burst: 1})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}
