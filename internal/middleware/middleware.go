package middleware

import (
	"context"
	"time"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/logger"
)

// Counter is the fixed-window store behind RateLimit. Implemented by database.Redis.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Middleware holds all HTTP middleware
type Middleware struct {
	counter Counter
	log     *logger.Logger
	cfg     *config.Config
}

// New creates a new Middleware instance. counter may be nil, which disables rate limiting.
func New(counter Counter, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		counter: counter,
		log:     log,
		cfg:     cfg,
	}
}
