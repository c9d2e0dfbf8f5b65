package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware limits each client IP within scope to the
// configured requests per minute.
func (rl *RateLimiter) IPRateLimitMiddleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), scope, ip)
		if err != nil {
			// A limiter fault never blocks a request.
			slog.Error("Rate limit check failed", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
				rl.metrics.IncrementRateLimitEndpoint(scope)
			}

			retryAfter := strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			c.Header("Retry-After", retryAfter)

			appErr := apperrors.NewRateLimitError(retryAfter)
			apperrors.LogError(c, appErr)
			apperrors.Abort(c, appErr)
			return
		}

		c.Next()
	}
}
