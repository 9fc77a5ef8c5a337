package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.IncrementOpenAlexCalls()
	m.IncrementRORCalls()
	m.IncrementResendCalls()

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])
	assert.Equal(t, int64(1), stats["cache_hits"])
	assert.Equal(t, int64(1), stats["cache_misses"])
	assert.Equal(t, int64(1), stats["openalex_api_calls"])
	assert.Equal(t, int64(1), stats["ror_api_calls"])
	assert.Equal(t, int64(1), stats["resend_api_calls"])
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	p50 := m.GetPercentileResponseTime(50)
	p99 := m.GetPercentileResponseTime(99)
	assert.Greater(t, p99, p50)
	assert.GreaterOrEqual(t, p50, 40*time.Millisecond)
	assert.LessOrEqual(t, p50, 60*time.Millisecond)
}

func TestMetricsPercentileEmpty(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(95))
}

func TestMetricsStatusDistribution(t *testing.T) {
	m := NewMetrics()

	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(404)
	m.RecordRequestByStatus(500)

	dist := m.GetStatusCodeDistribution()
	assert.Equal(t, int64(2), dist[200])
	assert.Equal(t, int64(1), dist[404])
	assert.Equal(t, int64(1), dist[500])
}

func TestMetricsExternalAPIStats(t *testing.T) {
	m := NewMetrics()

	m.RecordExternalAPIRequest("openalex", true)
	m.RecordExternalAPIRequest("openalex", true)
	m.RecordExternalAPIRequest("openalex", false)

	stats := m.GetExternalAPIStats()
	apiStats, ok := stats["openalex"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(3), apiStats["requests"])
	assert.Equal(t, int64(1), apiStats["errors"])
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.RecordResponseTime(10 * time.Millisecond)

	m.Reset()
	stats := m.GetStats()
	assert.Equal(t, int64(0), stats["total_requests"])
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()
	logger := NewLogger()

	r := gin.New()
	r.Use(MonitoringMiddleware(metrics, logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve := func(path string) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	serve("/ok")
	serve("/missing")

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])

	dist := metrics.GetStatusCodeDistribution()
	assert.Equal(t, int64(1), dist[200])
	assert.Equal(t, int64(1), dist[404])
}
