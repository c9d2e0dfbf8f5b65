package monitoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig selects level and destination for the service logger.
type LoggerConfig struct {
	Level string
	// File enables a rotating log file instead of stdout.
	File   string
	Output io.Writer
}

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a JSON logger. An unknown level falls back to info.
func NewLogger(config LoggerConfig) *Logger {
	level, _ := ParseLevel(config.Level)

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
	)
	switch {
	case config.Output != nil:
		out = config.Output
	case config.File != "":
		rotating := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = rotating
		closer = rotating
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler), closer: closer}
}

// NopLogger discards everything. Used by tests and optional wiring.
func NopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(requestID, method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// PredictionLogger logs a completed prediction. Input values are never logged.
func (l *Logger) PredictionLogger(ctx context.Context, variant string, provided int, class int, successPct float64, tier string, duration time.Duration) {
	l.InfoContext(ctx, "Prediction Completed",
		"variant", variant,
		"fields_provided", provided,
		"prediction", class,
		"success_probability", successPct,
		"tier", tier,
		"duration_ms", duration.Milliseconds(),
	)
}

// PredictionFailureLogger logs a rejected or failed prediction.
func (l *Logger) PredictionFailureLogger(ctx context.Context, variant, category string, err error) {
	l.WarnContext(ctx, "Prediction Failed",
		"variant", variant,
		"error_category", category,
		"error", err.Error(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SecurityLogger logs security-related events
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
	}
	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

var startTime = time.Now()
