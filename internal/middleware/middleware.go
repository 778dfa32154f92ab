package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/popeskul/evolution-gateway/internal/config"
)

// Config holds middleware configuration.
type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	RateLimit      rate.Limit
	RateLimitBurst int

	RequestTimeout time.Duration
}

// NewConfig maps the application middleware settings.
func NewConfig(cfg config.MiddlewareConfig, logger *zap.Logger) *Config {
	c := &Config{
		Logger:         logger,
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}
	if cfg.EnableCORS {
		c.CORS = NewCORSConfig(cfg.AllowedOrigins)
	}
	return c
}

// Chain creates a middleware chain with all configured middleware. The
// returned limiter must be stopped on shutdown.
func Chain(config *Config) (func(http.Handler) http.Handler, *RateLimiter) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rateLimiter := NewRateLimiter(config.RateLimit, config.RateLimitBurst)

	return func(handler http.Handler) http.Handler {
		// Outermost last.
		h := handler

		h = Timeout(config.RequestTimeout)(h)

		h = rateLimiter.Middleware()(h)

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(logger)(h)

		h = Logger(logger)(h)

		h = RequestID(h)

		return h
	}, rateLimiter
}
