package slips

import (
	"bytes"

	"slipsync/helpers"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

func SyncSlips(proc *services.SyncProcessor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, err := services.DecodeSyncPayload(bytes.NewReader(c.Body()))
		if err != nil {
			return helpers.JSONError(c, err)
		}

		report, err := proc.Sync(c.UserContext(), payload)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": true,
			"synced":  report.Synced,
			"message": "Slips synchronized successfully",
			"details": report.Details,
		})
	}
}
