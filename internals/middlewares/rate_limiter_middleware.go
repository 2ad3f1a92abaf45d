package middlewares

import (
	"time"

	helper "drivingschool_backend/internals/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func newIPLimiter(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, message)
		},
	})
}

// GlobalRateLimiter applies to every endpoint.
func GlobalRateLimiter() fiber.Handler {
	return newIPLimiter(100, time.Minute, "Too many requests. Please try again later.")
}

// LoginRateLimiter is stricter, for login and register.
func LoginRateLimiter() fiber.Handler {
	return newIPLimiter(5, time.Minute, "Too many login attempts. Please wait a moment.")
}

// WebhookRateLimiter bounds gateway callbacks per source IP.
func WebhookRateLimiter() fiber.Handler {
	return newIPLimiter(300, time.Minute, "Too many callbacks")
}
