package masterslips

import (
	"slipsync/helpers"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

func ListGenerated(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.ListGeneratedSlips(c.UserContext(), c.Params("id"), c.Query("status"), helpers.ParseListQuery(c))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONList(c, page.Items, page.Page, page.Limit, page.Total, page.Pages())
	}
}

// CreateGenerated takes a bare array of slips or {"slips": [...]}.
func CreateGenerated(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := helpers.BodyItems(c, "slips")
		if err != nil {
			return helpers.JSONError(c, err)
		}
		created, err := svc.CreateGeneratedSlips(c.UserContext(), c.Params("id"), items)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONCreated(c, "Generated slips created", created)
	}
}

func DeleteSlips(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.DeleteSlipsByMaster(c.UserContext(), c.Params("id"))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Generated slips deleted", res)
	}
}
