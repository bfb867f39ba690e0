package system

import (
	"context"
	"time"

	"slipsync/database"

	"github.com/gofiber/fiber/v2"
)

const pingTimeout = 2 * time.Second

func Root(gw *database.Gateway, engineVersion string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":        "slipsync",
			"engine_version": engineVersion,
			"database":       gw.State().String(),
		})
	}
}

// Health pings storage directly and never goes through the lazy reconnect.
func Health(gw *database.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()

		if err := gw.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success":  false,
				"status":   "unhealthy",
				"database": gw.State().String(),
				"message":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"status":   "healthy",
			"database": gw.State().String(),
		})
	}
}

func Reconnect(gw *database.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := gw.Reconnect(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success":  false,
				"error":    "Storage unavailable",
				"message":  err.Error(),
				"database": gw.State().String(),
			})
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"message":  "Reconnected",
			"database": gw.State().String(),
		})
	}
}
