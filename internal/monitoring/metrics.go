package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates API counters for the /metrics endpoint. Counter
// fields use atomics; the sample ring and maps take their own locks.
type Metrics struct {
	requests  int64
	errors    int64
	cacheHits int64
	cacheMiss int64

	openalexCalls int64
	rorCalls      int64
	resendCalls   int64

	avgResponseNs int64
	startTime     time.Time

	sampleMu sync.RWMutex
	samples  []time.Duration // recent response times for percentiles

	statusMu sync.RWMutex
	byStatus map[int]int64

	breakerOpens  int64
	breakerCloses int64

	apiMu      sync.RWMutex
	apiCalls   map[string]int64
	apiErrors  map[string]int64

	ipBlocks       int64
	redisErrors    int64
	fallbackChecks int64
}

const maxSamples = 1000

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		samples:   make([]time.Duration, 0, maxSamples),
		byStatus:  make(map[int]int64),
		apiCalls:  make(map[string]int64),
		apiErrors: make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest()   { atomic.AddInt64(&m.requests, 1) }
func (m *Metrics) IncrementError()     { atomic.AddInt64(&m.errors, 1) }
func (m *Metrics) IncrementCacheHit()  { atomic.AddInt64(&m.cacheHits, 1) }
func (m *Metrics) IncrementCacheMiss() { atomic.AddInt64(&m.cacheMiss, 1) }

// Upstream call counters, one per provider.
func (m *Metrics) IncrementOpenAlexCalls() { atomic.AddInt64(&m.openalexCalls, 1) }
func (m *Metrics) IncrementRORCalls()      { atomic.AddInt64(&m.rorCalls, 1) }
func (m *Metrics) IncrementResendCalls()   { atomic.AddInt64(&m.resendCalls, 1) }

func (m *Metrics) IncrementCircuitBreakerOpen()  { atomic.AddInt64(&m.breakerOpens, 1) }
func (m *Metrics) IncrementCircuitBreakerClose() { atomic.AddInt64(&m.breakerCloses, 1) }

func (m *Metrics) IncrementRateLimitIPBlock()    { atomic.AddInt64(&m.ipBlocks, 1) }
func (m *Metrics) IncrementRateLimitRedisError() { atomic.AddInt64(&m.redisErrors, 1) }
func (m *Metrics) IncrementRateLimitFallback()   { atomic.AddInt64(&m.fallbackChecks, 1) }

// RecordResponseTime folds a response time into the running average and
// keeps the last maxSamples samples for percentile queries.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.avgResponseNs)
	atomic.StoreInt64(&m.avgResponseNs, (current+duration.Nanoseconds())/2)

	m.sampleMu.Lock()
	m.samples = append(m.samples, duration)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[1:]
	}
	m.sampleMu.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	m.byStatus[statusCode]++
	m.statusMu.Unlock()
}

// RecordExternalAPIRequest records an upstream provider call outcome.
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.apiMu.Lock()
	m.apiCalls[apiName]++
	if !success {
		m.apiErrors[apiName]++
	}
	m.apiMu.Unlock()
}

// GetPercentileResponseTime returns the given percentile over the
// retained samples, or zero when no samples exist.
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.sampleMu.RLock()
	defer m.sampleMu.RUnlock()

	if len(m.samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.samples))
	copy(sorted, m.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * percentile / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// GetStatusCodeDistribution returns request count by status code.
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	out := make(map[int]int64, len(m.byStatus))
	for code, count := range m.byStatus {
		out[code] = count
	}
	return out
}

// GetExternalAPIStats returns per-provider request and error counts.
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.apiMu.RLock()
	defer m.apiMu.RUnlock()

	stats := make(map[string]interface{}, len(m.apiCalls))
	for api, calls := range m.apiCalls {
		errs := m.apiErrors[api]
		rate := float64(0)
		if calls > 0 {
			rate = float64(errs) / float64(calls) * 100
		}
		stats[api] = map[string]interface{}{
			"requests":   calls,
			"errors":     errs,
			"error_rate": rate,
		}
	}
	return stats
}

// GetStats returns the full metrics snapshot served by /metrics.
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.requests)
	errCount := atomic.LoadInt64(&m.errors)
	hits := atomic.LoadInt64(&m.cacheHits)
	misses := atomic.LoadInt64(&m.cacheMiss)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errCount) / float64(requests) * 100
	}

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.startTime).Seconds(),
		"total_requests":         requests,
		"error_count":            errCount,
		"error_rate_percent":     errorRate,
		"cache_hits":             hits,
		"cache_misses":           misses,
		"cache_hit_rate_percent": hitRate,
		"openalex_api_calls":     atomic.LoadInt64(&m.openalexCalls),
		"ror_api_calls":          atomic.LoadInt64(&m.rorCalls),
		"resend_api_calls":       atomic.LoadInt64(&m.resendCalls),
		"avg_response_time_ms":   float64(atomic.LoadInt64(&m.avgResponseNs)) / 1e6,
		"start_time":             m.startTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),

		"circuit_breaker_opens":  atomic.LoadInt64(&m.breakerOpens),
		"circuit_breaker_closes": atomic.LoadInt64(&m.breakerCloses),

		"rate_limit_ip_blocks":      atomic.LoadInt64(&m.ipBlocks),
		"rate_limit_redis_errors":   atomic.LoadInt64(&m.redisErrors),
		"rate_limit_fallback_count": atomic.LoadInt64(&m.fallbackChecks),
	}
}

// Reset clears all counters and samples. Used by tests.
func (m *Metrics) Reset() {
	for _, p := range []*int64{
		&m.requests, &m.errors, &m.cacheHits, &m.cacheMiss,
		&m.openalexCalls, &m.rorCalls, &m.resendCalls, &m.avgResponseNs,
		&m.breakerOpens, &m.breakerCloses,
		&m.ipBlocks, &m.redisErrors, &m.fallbackChecks,
	} {
		atomic.StoreInt64(p, 0)
	}

	m.sampleMu.Lock()
	m.samples = m.samples[:0]
	m.sampleMu.Unlock()

	m.statusMu.Lock()
	m.byStatus = make(map[int]int64)
	m.statusMu.Unlock()

	m.apiMu.Lock()
	m.apiCalls = make(map[string]int64)
	m.apiErrors = make(map[string]int64)
	m.apiMu.Unlock()

	m.startTime = time.Now()
}
