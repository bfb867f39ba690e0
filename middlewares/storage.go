package middlewares

import (
	"slipsync/database"

	"github.com/gofiber/fiber/v2"
)

// RequireStorage answers 503 while the gateway is not Ready. Each blocked
// request may trigger a lazy reconnect, rate limited by the gateway backoff.
func RequireStorage(gw *database.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := gw.EnsureReady(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "Storage unavailable",
				"message": err.Error(),
			})
		}
		return c.Next()
	}
}
