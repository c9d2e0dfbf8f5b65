package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxSamples bounds the latency window used for percentiles.
const maxSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	RequestCount      int64
	ErrorCount        int64
	totalResponseTime int64 // nanoseconds
	StartTime         time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Prediction metrics
	PredictionCount        int64
	PredictedSuccess       int64
	ValidationFailures     int64
	PredictionFailures     int64
	totalPredictionLatency int64 // nanoseconds
	PredictionsByTier      map[string]int64
	PredictionsByVariant   map[string]int64
	PredictionMutex        sync.RWMutex

	// Rate limit metrics
	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	RateLimitEndpointBlocks map[string]int64
	RateLimitMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		ResponseTimes:           make([]time.Duration, 0, maxSamples),
		RequestCountByStatus:    make(map[int]int64),
		PredictionsByTier:       make(map[string]int64),
		PredictionsByVariant:    make(map[string]int64),
		RateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	atomic.AddInt64(&m.totalResponseTime, duration.Nanoseconds())

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > maxSamples {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordPrediction counts a successful prediction.
func (m *Metrics) RecordPrediction(variant string, class int, tier string, latency time.Duration) {
	atomic.AddInt64(&m.PredictionCount, 1)
	atomic.AddInt64(&m.totalPredictionLatency, latency.Nanoseconds())
	if class == 1 {
		atomic.AddInt64(&m.PredictedSuccess, 1)
	}

	m.PredictionMutex.Lock()
	defer m.PredictionMutex.Unlock()
	m.PredictionsByVariant[variant]++
	if tier != "" {
		m.PredictionsByTier[tier]++
	}
}

// RecordPredictionFailure counts a rejected input or a predictor failure.
func (m *Metrics) RecordPredictionFailure(category string) {
	if category == "validation" {
		atomic.AddInt64(&m.ValidationFailures, 1)
		return
	}
	atomic.AddInt64(&m.PredictionFailures, 1)
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)
	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetPredictionStats returns prediction counters.
func (m *Metrics) GetPredictionStats() map[string]interface{} {
	m.PredictionMutex.RLock()
	byTier := make(map[string]int64, len(m.PredictionsByTier))
	for k, v := range m.PredictionsByTier {
		byTier[k] = v
	}
	byVariant := make(map[string]int64, len(m.PredictionsByVariant))
	for k, v := range m.PredictionsByVariant {
		byVariant[k] = v
	}
	m.PredictionMutex.RUnlock()

	count := atomic.LoadInt64(&m.PredictionCount)
	avgLatency := float64(0)
	if count > 0 {
		avgLatency = float64(atomic.LoadInt64(&m.totalPredictionLatency)) / float64(count) / 1e6
	}

	return map[string]interface{}{
		"total":               count,
		"predicted_success":   atomic.LoadInt64(&m.PredictedSuccess),
		"validation_failures": atomic.LoadInt64(&m.ValidationFailures),
		"prediction_failures": atomic.LoadInt64(&m.PredictionFailures),
		"avg_latency_ms":      avgLatency,
		"by_tier":             byTier,
		"by_variant":          byVariant,
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)

	errorRate := float64(0)
	avgResponseTime := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
		avgResponseTime = float64(atomic.LoadInt64(&m.totalResponseTime)) / float64(requests) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"total_requests":       requests,
		"error_count":          errors,
		"error_rate_percent":   errorRate,
		"avg_response_time_ms": avgResponseTime,
		"start_time":           m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"predictions": m.GetPredictionStats(),
		"rate_limit":  m.GetRateLimitStats(),
	}
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.RateLimitMutex.Lock()
	defer m.RateLimitMutex.Unlock()
	m.RateLimitEndpointBlocks[endpoint]++
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.RateLimitMutex.RLock()
	endpointBlocks := make(map[string]int64, len(m.RateLimitEndpointBlocks))
	for k, v := range m.RateLimitEndpointBlocks {
		endpointBlocks[k] = v
	}
	m.RateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocks,
	}
}
