package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter shared through Redis, so
// every instance behind a load balancer sees the same budget.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(perMinute),
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow counts one request for identifier in the current window.
func (r *RateLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	windowStart := r.now().Unix() / int64(r.window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, windowStart)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set window expiry: %w", err)
		}
	}

	return count <= r.limit, nil
}

// Middleware limits PocketBase routes per client IP. Requests pass when
// Redis cannot be reached.
func (r *RateLimiter) Middleware(e *core.RequestEvent) error {
	allowed, err := r.Allow(e.Request.Context(), e.RealIP())
	if err != nil {
		slog.Error("Rate limiter unavailable", "error", err, "ip", e.RealIP())
		return e.Next()
	}
	if !allowed {
		return e.TooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
	}
	return e.Next()
}

// EchoMiddleware limits the ops server with the same Redis counters.
func (r *RateLimiter) EchoMiddleware() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{limiter: r},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return "ops:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "Unable to identify client",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// redisStore adapts RateLimiter to echo's RateLimiterStore.
type redisStore struct {
	limiter *RateLimiter
}

func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	allowed, err := s.limiter.Allow(ctx, identifier)
	if err != nil {
		slog.Error("Rate limiter unavailable", "error", err, "identifier", identifier)
		return true, nil
	}
	return allowed, nil
}
