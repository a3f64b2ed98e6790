package middleware

import (
	"fmt"
	"net/http"

	"research-grant-api/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "grant-api:ratelimit"

// NewRateLimitStore picks the limiter backend. A broken redis setup falls back to memory.
func NewRateLimitStore(opts config.RateLimitOptions, logger *logrus.Logger) limiter.Store {
	memoryStore := func() limiter.Store {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
	}
	if opts.Storage != "redis" {
		return memoryStore()
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse redis URL for rate limiting, falling back to memory")
		return memoryStore()
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(redisOpts), limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
		return memoryStore()
	}
	return store
}

// RateLimitMiddleware limits requests per client IP at the formatted rate, e.g. "10-M".
func RateLimitMiddleware(rate string, store limiter.Store) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}

	return mgin.NewMiddleware(
		limiter.New(store, parsed),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
		}),
	), nil
}
