package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/gin-gonic/gin"
)

const nonceKey = "csp-nonce"

// GenerateNonce generates a cryptographically secure random nonce
func GenerateNonce() (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonceBytes), nil
}

// CSP generates a per-request nonce for the HTML views and sets the
// Content-Security-Policy header.
func (sm *SecurityMiddleware) CSP(c *gin.Context) {
	nonce, err := GenerateNonce()
	if err != nil {
		appErr := apperrors.NewInternalError("nonce generation failed", err)
		apperrors.Abort(c, appErr)
		return
	}

	c.Set(nonceKey, nonce)

	policy := buildCSPPolicy(nonce)
	c.Header("Content-Security-Policy", policy)
	if sm.config.CSPReportURI != "" {
		c.Header("Content-Security-Policy-Report-Only", policy+"; report-uri "+sm.config.CSPReportURI)
	}

	c.Next()
}

// GetNonce retrieves the nonce from the Gin context
func GetNonce(c *gin.Context) string {
	return c.GetString(nonceKey)
}

func buildCSPPolicy(nonce string) string {
	return fmt.Sprintf(
		"default-src 'self'; "+
			"script-src 'self' 'nonce-%s'; "+
			"style-src 'self' 'nonce-%s'; "+
			"img-src 'self' data:; "+
			"font-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'; "+
			"base-uri 'self'; "+
			"form-action 'self'",
		nonce, nonce,
	)
}
