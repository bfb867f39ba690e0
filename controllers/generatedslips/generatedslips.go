package generatedslips

import (
	"slipsync/helpers"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

func Get(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slip, err := svc.GetGeneratedSlip(c.UserContext(), c.Params("id"))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Generated slip retrieved", slip)
	}
}

func UpdateStatus(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := helpers.BodyMap(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		status, _ := body["status"].(string)
		slip, err := svc.UpdateGeneratedSlipStatus(c.UserContext(), c.Params("id"), status)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Status updated", slip)
	}
}
