package server

import (
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/startup-success-predictor/docs"
	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/frontend"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/middleware"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/ratelimit"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/security"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options configures the router.
type Options struct {
	Version        string
	AllowedOrigins []string
	EnableSwagger  bool
	Security       security.SecurityConfig
	Compression    middleware.CompressionConfig
}

// Deps are the long-lived collaborators shared by every request.
type Deps struct {
	Service  *prediction.Service
	Renderer *frontend.Renderer
	Logger   *monitoring.Logger
	Metrics  *monitoring.Metrics
	// Limiter is optional; without it prediction routes are unlimited.
	Limiter *ratelimit.RateLimiter
	Redis   *ratelimit.RedisClient
}

// Handler serves the HTTP surface.
type Handler struct {
	deps        Deps
	opts        Options
	compression *middleware.CompressionMiddleware
	started     time.Time
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(deps Deps, opts Options) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = monitoring.NopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	h := &Handler{
		deps:        deps,
		opts:        opts,
		compression: middleware.NewCompressionMiddleware(opts.Compression),
		started:     time.Now(),
	}
	sec := security.NewSecurityMiddleware(opts.Security)

	r := gin.New()
	if err := r.SetTrustedProxies(opts.Security.TrustedProxies); err != nil {
		deps.Logger.Warn("Ignoring invalid trusted proxies", "proxies", opts.Security.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.MonitoringMiddleware(deps.Metrics, deps.Logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(deps.Logger))
	r.Use(h.compression.Handler())
	r.Use(apperrors.ErrorHandler())
	r.Use(h.pageScope(sec))
	r.Use(sec.SecurityHeaders)
	r.Use(sec.RequestTimeout)
	r.Use(sec.MaxBodySize)
	r.Use(sec.ValidateContentType)

	predictLimit := h.rateLimit("predict")

	r.GET("/", h.Index)
	r.GET("/predict", h.Form)
	r.POST("/predict", predictLimit, h.PredictForm)
	r.GET("/adaptivity", h.Adaptivity)

	r.GET("/static/*filepath", frontend.StaticHandler("/static", frontend.StaticFS()))
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	api := r.Group("/api", corsMiddleware(opts.AllowedOrigins))
	{
		api.POST("/predict", predictLimit, h.PredictAPI)
		api.GET("/schema", h.Schema)
		// cors answers preflights itself; this route only lets them match.
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	if opts.EnableSwagger {
		docs.SwaggerInfo.Version = opts.Version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

var pageRoutes = map[string]bool{"/": true, "/predict": true, "/adaptivity": true}

// pageScope gives HTML routes a CSP nonce and HTML error pages. It must run
// ahead of any middleware that can abort.
func (h *Handler) pageScope(sec *security.SecurityMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pageRoutes[c.FullPath()] {
			c.Next()
			return
		}
		apperrors.UseErrorRenderer(c, h.renderError)
		sec.CSP(c)
	}
}

// renderError shows appErr on the results page with appErr's status.
func (h *Handler) renderError(c *gin.Context, appErr *apperrors.AppError) {
	if h.deps.Renderer != nil {
		view := frontend.NewResultsView(prediction.Result{Error: appErr.Message()})
		if err := h.deps.Renderer.Render(c, appErr.HTTPStatus, frontend.PageResults, view); err == nil {
			return
		}
	}
	c.JSON(appErr.HTTPStatus, appErr.Response())
}

func (h *Handler) rateLimit(scope string) gin.HandlerFunc {
	if h.deps.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h.deps.Limiter.IPRateLimitMiddleware(scope)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", monitoring.RequestIDHeader},
		ExposeHeaders: []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}
