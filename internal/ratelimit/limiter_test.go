package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchbridge/backend/internal/monitoring"
)

func newFallbackLimiter(limit int) *RateLimiter {
	redisClient := &RedisClient{enabled: false}
	return NewRateLimiter(redisClient, Config{
		IPLimitPerMin:   limit,
		BurstMultiplier: 1,
	}, monitoring.NewMetrics())
}

func TestAllowIPFallbackBurst(t *testing.T) {
	limiter := newFallbackLimiter(10)
	ctx := context.Background()

	// The token bucket starts with the full burst available
	for i := 0; i < 10; i++ {
		result, err := limiter.AllowIP(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 10, result.Limit)
	}

	result, err := limiter.AllowIP(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
}

func TestAllowIPIsolatedPerIP(t *testing.T) {
	limiter := newFallbackLimiter(5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.AllowIP(ctx, "192.0.2.1")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	blocked, err := limiter.AllowIP(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	// A different IP has its own bucket
	other, err := limiter.AllowIP(ctx, "192.0.2.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestFallbackMinimumBurst(t *testing.T) {
	limiter := newFallbackLimiter(1)
	ctx := context.Background()

	// Burst floor of 5 applies even for tiny limits
	allowed := 0
	for i := 0; i < 6; i++ {
		result, err := limiter.AllowIP(ctx, "192.0.2.9")
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestGetStats(t *testing.T) {
	limiter := newFallbackLimiter(10)
	_, err := limiter.AllowIP(context.Background(), "192.0.2.1")
	require.NoError(t, err)

	stats := limiter.GetStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.Equal(t, 1, stats["fallback_limiters"])
}

func TestIPRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newFallbackLimiter(5)

	r := gin.New()
	r.Use(limiter.IPRateLimitMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})

	var lastOK *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		lastOK = w
	}
	assert.Equal(t, "5", lastOK.Header().Get("X-RateLimit-Limit"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}
