package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
)

const rateLimitPrefix = "rl:v1:"

// RateLimit caps requests per identifier (or client IP) per minute using Redis.
// scope separates counters of different routes. Without Redis it is a no-op,
// and cache errors fail open.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		var req struct {
			Identifier string `json:"identifier"`
		}
		_ = c.BodyParser(&req)
		subject := c.IP()
		if id, err := identity.ParseIdentifier(req.Identifier); err == nil {
			subject = id.String()
		} else if raw := strings.TrimSpace(req.Identifier); raw != "" {
			subject = raw
		}

		key := rateLimitPrefix + scope + ":" + subject
		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable", slog.String("scope", scope), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return apperror.New(http.StatusTooManyRequests, apperror.KindRateLimited, "too many attempts, try again later")
		}
		return c.Next()
	}
}
