package masterslips

import (
	"slipsync/helpers"
	"slipsync/repository"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

func List(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := repository.MasterSlipFilter{
			UserID: c.Query("user_id"),
			Status: c.Query("status"),
		}
		page, err := svc.ListMasterSlips(c.UserContext(), filter, helpers.ParseListQuery(c))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONList(c, page.Items, page.Page, page.Limit, page.Total, page.Pages())
	}
}

func Create(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := helpers.BodyMap(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		m, err := svc.CreateMasterSlip(c.UserContext(), body)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONCreated(c, "Master slip created", m)
	}
}

func Get(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := svc.GetMasterSlip(c.UserContext(), c.Params("id"))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Master slip retrieved", m)
	}
}

func Update(svc *services.SlipService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := helpers.BodyMap(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		m, err := svc.UpdateMasterSlip(c.UserContext(), c.Params("id"), body)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Master slip updated", m)
	}
}
