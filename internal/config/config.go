package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	LogFile  string

	// Predictor selection. PredictorURL wins over ModelPath when set.
	ModelPath        string
	PredictorURL     string
	PredictorTimeout time.Duration

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitPerMin int

	AllowedOrigins  []string
	TrustedProxies  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	EnableSwagger   bool
}

// Load reads configuration from the environment after applying the given
// .env files (default ".env"). Missing .env files are ignored; variables
// already set in the environment are never overridden.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to read %s", file), err)
		}
	}

	p := &parser{}
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		ModelPath:        getEnv("MODEL_PATH", "./model/startup_model.json"),
		PredictorURL:     os.Getenv("PREDICTOR_URL"),
		PredictorTimeout: p.duration("PREDICTOR_TIMEOUT", 5*time.Second),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         p.integer("REDIS_DB", 0),
		RateLimitPerMin: p.integer("RATE_LIMIT_PER_MIN", 60),

		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		TrustedProxies:  splitList(os.Getenv("TRUSTED_PROXIES")),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    int64(p.integer("MAX_BODY_BYTES", 64<<10)),
		EnableSwagger:   p.boolean("ENABLE_SWAGGER", false),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot.
func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("PORT %q is not a valid port", c.Port), err)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("GIN_MODE %q must be debug, release or test", c.GinMode), nil)
	}
	if _, err := monitoring.ParseLevel(c.LogLevel); err != nil {
		return apperrors.NewConfigurationError("invalid LOG_LEVEL", err)
	}
	if c.PredictorURL == "" && c.ModelPath == "" {
		return apperrors.NewConfigurationError("one of PREDICTOR_URL or MODEL_PATH is required", nil)
	}
	if c.PredictorURL != "" && !strings.HasPrefix(c.PredictorURL, "http://") && !strings.HasPrefix(c.PredictorURL, "https://") {
		return apperrors.NewConfigurationError(fmt.Sprintf("PREDICTOR_URL %q must be an http(s) URL", c.PredictorURL), nil)
	}

	positive := map[string]time.Duration{
		"PREDICTOR_TIMEOUT": c.PredictorTimeout,
		"REQUEST_TIMEOUT":   c.RequestTimeout,
		"SHUTDOWN_TIMEOUT":  c.ShutdownTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return apperrors.NewConfigurationError(fmt.Sprintf("%s must be positive, got %s", name, d), nil)
		}
	}
	if c.RateLimitPerMin <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("RATE_LIMIT_PER_MIN must be positive, got %d", c.RateLimitPerMin), nil)
	}
	if c.MaxBodyBytes <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes), nil)
	}
	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return apperrors.NewConfigurationError(fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy), nil)
		}
	}
	if c.RedisDB < 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("REDIS_DB must not be negative, got %d", c.RedisDB), nil)
	}
	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// parser records the first malformed variable it sees.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = apperrors.NewConfigurationError(fmt.Sprintf("invalid %s value %q", key, value), err)
	}
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) integer(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) boolean(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return b
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
