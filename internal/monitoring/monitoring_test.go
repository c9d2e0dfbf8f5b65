package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredictionLoggerOmitsInputs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "info", Output: &buf})

	logger.PredictionLogger(context.Background(), "api", 2, 1, 75.5, "Likely to Succeed", 3*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Prediction Completed", entry["msg"])
	assert.Equal(t, "api", entry["variant"])
	assert.Equal(t, float64(2), entry["fields_provided"])
	assert.Equal(t, "Likely to Succeed", entry["tier"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "input_data")
	assert.NoError(t, logger.Close())
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "warn", Output: &buf})

	logger.SystemLogger("startup", "ignored at warn")
	assert.Zero(t, buf.Len())

	logger.PredictionFailureLogger(context.Background(), "form", "validation", errors.New("bad value"))
	assert.Contains(t, buf.String(), "Prediction Failed")
}

func TestMetricsPredictionStats(t *testing.T) {
	m := NewMetrics()
	m.RecordPrediction("form", 1, "Highly Likely to Succeed", 2*time.Millisecond)
	m.RecordPrediction("api", 0, "", 4*time.Millisecond)
	m.RecordPredictionFailure("validation")
	m.RecordPredictionFailure("prediction")

	stats := m.GetPredictionStats()
	assert.Equal(t, int64(2), stats["total"])
	assert.Equal(t, int64(1), stats["predicted_success"])
	assert.Equal(t, int64(1), stats["validation_failures"])
	assert.Equal(t, int64(1), stats["prediction_failures"])
	assert.InDelta(t, 3.0, stats["avg_latency_ms"], 1e-9)
	assert.Equal(t, map[string]int64{"Highly Likely to Succeed": 1}, stats["by_tier"])
	assert.Equal(t, map[string]int64{"form": 1, "api": 1}, stats["by_variant"])
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 99*time.Millisecond, m.GetPercentileResponseTime(99))
	assert.Equal(t, time.Duration(0), NewMetrics().GetPercentileResponseTime(50))
}

func TestMetricsWindowIsBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < maxSamples+10; i++ {
		m.RecordResponseTime(time.Millisecond)
	}
	assert.Len(t, m.ResponseTimes, maxSamples)
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestMonitoringMiddlewareCountsErrors(t *testing.T) {
	metrics := NewMetrics()
	router := gin.New()
	router.Use(MonitoringMiddleware(metrics, NopLogger()))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/bad", "/bad"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats["total_requests"])
	assert.Equal(t, int64(2), stats["error_count"])
	assert.Equal(t, map[int]int64{200: 1, 400: 2}, stats["status_code_distribution"])
}

func TestIsScanner(t *testing.T) {
	assert.True(t, isScanner("sqlmap/1.7"))
	assert.True(t, isScanner("Mozilla/5.0 Nikto"))
	assert.False(t, isScanner("Mozilla/5.0 (X11; Linux x86_64)"))
}
