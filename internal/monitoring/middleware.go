package monitoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// slowRequest is the latency above which a request is logged as slow.
const slowRequest = 5 * time.Second

// RequestIDMiddleware assigns each request an ID, reusing a well-formed
// incoming X-Request-ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(c.GetString("request_id"), method, path, ip, userAgent, statusCode, duration)

		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
		}

		if duration > slowRequest {
			logger.PerformanceLogger("slow_request", duration.Seconds(), "seconds")
		}
		if statusCode >= 500 {
			logger.SystemLogger("server_error", fmt.Sprintf("Status %d for %s %s", statusCode, method, path))
		}
	}
}

// SecurityMonitoringMiddleware logs requests from known scanner user agents.
func SecurityMonitoringMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userAgent := c.GetHeader("User-Agent")
		if isScanner(userAgent) {
			logger.SecurityLogger("suspicious_user_agent", c.ClientIP(), userAgent, map[string]interface{}{
				"path": c.Request.URL.Path,
			})
		}
		c.Next()
	}
}

var scannerAgents = []string{
	"sqlmap", "nmap", "masscan", "zmap", "dirbuster", "gobuster",
	"nikto", "acunetix", "openvas", "nessus",
}

func isScanner(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, agent := range scannerAgents {
		if strings.Contains(ua, agent) {
			return true
		}
	}
	return false
}
