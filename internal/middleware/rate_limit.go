package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/opvera/opvera-api/internal/utils"
)

// RateLimit builds a per-user limiter keyed by the authenticated user id,
// falling back to the client IP for anonymous traffic. Chat message posting
// uses this to keep a single member from flooding a channel.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			subject := fmt.Sprintf("%v", c.Locals("user_id"))
			if subject == "" || subject == "<nil>" {
				subject = c.IP()
			}
			return scope + ":" + subject
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "rate limit exceeded, slow down")
		},
	})
}
