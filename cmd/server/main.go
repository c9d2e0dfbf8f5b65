// @title           Startup Success Predictor API
// @version         1.0
// @description     Scores startup profiles with a trained binary classifier.
// @BasePath        /

//go:generate swag init -g main.go -d ./,../../internal/server,../../internal/prediction -o ../../docs

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/config"
	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/frontend"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/ratelimit"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/security"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/server"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: cfg.LogLevel, File: cfg.LogFile})
	defer apperrors.SafeClose(logger, "log file")
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.GinMode)

	model, closeModel, err := loadPredictor(cfg)
	if err != nil {
		return err
	}
	defer closeModel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting is in-memory only", "addr", cfg.RedisAddr, "error", err)
	}
	defer apperrors.SafeClose(redisClient, "redis client")

	metrics := monitoring.NewMetrics()
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{PerMinute: cfg.RateLimitPerMin}, metrics)
	defer limiter.Close()

	renderer, err := frontend.LoadRenderer(frontend.TemplatesFS())
	if err != nil {
		return err
	}

	router := server.NewRouter(server.Deps{
		Service:  prediction.NewService(model, logger, metrics),
		Renderer: renderer,
		Logger:   logger,
		Metrics:  metrics,
		Limiter:  limiter,
		Redis:    redisClient,
	}, server.Options{
		Version:        version,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableSwagger:  cfg.EnableSwagger,
		Security: security.SecurityConfig{
			MaxBodyBytes:   cfg.MaxBodyBytes,
			RequestTimeout: cfg.RequestTimeout,
			TrustedProxies: cfg.TrustedProxies,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.SystemLogger("startup", "version="+version+" model="+describe(model))
	return serve(ctx, srv, cfg.ShutdownTimeout)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests for
// at most timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server exited")
	return nil
}
