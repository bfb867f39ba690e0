package slips

import (
	"errors"

	"slipsync/apperrors"
	"slipsync/helpers"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

// GetPlacementSlips serves the placement view of one master slip. The body is
// the bare envelope, without the success/data wrapper.
func GetPlacementSlips(svc *services.PlacementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := svc.Get(c.UserContext(), c.Params("masterSlipId"))
		if err != nil {
			var nf *apperrors.NotFoundError
			if errors.As(err, &nf) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"error":   "Master slip not found",
					"message": err.Error(),
				})
			}
			return helpers.JSONError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}
