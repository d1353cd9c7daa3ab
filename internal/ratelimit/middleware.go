package ratelimit

import (
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Middleware rejects requests over the limiter's bound with a 429 before they
// reach the registry or orchestrator. The client identity is the request IP.
func Middleware(l *Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, remaining, retryAfter := l.Allow(c.IP())

		c.Set("RateLimit-Limit", strconv.Itoa(l.Limit()))
		c.Set("RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			retrySecs := int(math.Ceil(retryAfter.Seconds()))
			log.Printf("Rate limit exceeded: ip=%s path=%s retry_after=%ds", c.IP(), c.Path(), retrySecs)
			c.Set("Retry-After", strconv.Itoa(retrySecs))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "Too many requests",
				"message":    fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", l.Limit(), l.Window()),
				"retryAfter": retrySecs,
			})
		}

		return c.Next()
	}
}
