package security

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes        int64         `json:"max_body_bytes"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	AllowedContentTypes []string      `json:"allowed_content_types"`
	EnableHSTS          bool          `json:"enable_hsts"`
	CSPReportURI        string        `json:"csp_report_uri"`
	// TrustedProxies are the peers whose X-Forwarded-For is believed when
	// resolving the client IP. Empty trusts no proxy.
	TrustedProxies []string `json:"trusted_proxies"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:   64 << 10,
		RequestTimeout: 30 * time.Second,
		AllowedContentTypes: []string{
			"application/json",
			"application/x-www-form-urlencoded",
			"multipart/form-data",
		},
	}
}

// SecurityMiddleware bundles the request-hardening middleware.
type SecurityMiddleware struct {
	config  SecurityConfig
	allowed map[string]bool
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	defaults := DefaultSecurityConfig()
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if len(config.AllowedContentTypes) == 0 {
		config.AllowedContentTypes = defaults.AllowedContentTypes
	}

	allowed := make(map[string]bool, len(config.AllowedContentTypes))
	for _, t := range config.AllowedContentTypes {
		allowed[t] = true
	}
	return &SecurityMiddleware{config: config, allowed: allowed}
}

// Config returns the effective configuration.
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// ValidateContentType rejects request bodies of a type no handler accepts.
// Requests without a body are not checked.
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.ContentLength == 0 && c.Request.Header.Get("Transfer-Encoding") == "" {
		c.Next()
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		c.Next()
		return
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !sm.allowed[mediaType] {
		appErr := apperrors.NewValidationError("unsupported content type", contentType)
		appErr.HTTPStatus = http.StatusUnsupportedMediaType
		apperrors.Abort(c, appErr)
		return
	}

	c.Next()
}

// MaxBodySize caps how many bytes a handler may read from the request body.
func (sm *SecurityMiddleware) MaxBodySize(c *gin.Context) {
	if c.Request.ContentLength > sm.config.MaxBodyBytes {
		appErr := apperrors.NewValidationError("request body too large")
		appErr.HTTPStatus = http.StatusRequestEntityTooLarge
		apperrors.Abort(c, appErr)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	c.Next()
}

// RequestTimeout bounds the request context; predictor calls observe it.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
