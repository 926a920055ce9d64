package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const loginRateLimitPrefix = "rl:login:"

// LoginRateLimit limits credential lookups per login, or per IP when no login
// is given, using a fixed one-minute window in Redis. Requests without a
// login query parameter are listings and pass through. The limiter fails open
// when Redis is missing or erroring.
func LoginRateLimit(cache *redis.Client, maxPerMin int, metrics *HTTPMetrics) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil || !c.Context().QueryArgs().Has("login") {
			return c.Next()
		}
		subject := strings.ToLower(strings.TrimSpace(c.Query("login")))
		if subject == "" {
			subject = c.IP()
		}
		key := loginRateLimitPrefix + subject

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			metrics.limited()
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			}
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}
