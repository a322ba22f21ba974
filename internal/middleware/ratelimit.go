package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// RateCounter counts hits per key over a sliding window.
type RateCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit allows limit requests per client IP within window. A nil
// counter disables limiting, and counter failures let the request through.
func RateLimit(counter RateCounter, name string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if counter == nil || limit <= 0 {
			return c.Next()
		}

		key := "rate_limit:" + name + ":" + c.IP()
		count, err := counter.Hit(c.UserContext(), key, window)
		if err != nil {
			log.WithError(err).Warn("rate limiter unavailable")
			return c.Next()
		}
		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests. Please try again later.",
			})
		}
		return c.Next()
	}
}
