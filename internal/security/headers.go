package security

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds the static security headers to every response.
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	// Only meaningful behind TLS
	if sm.config.EnableHSTS {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}
