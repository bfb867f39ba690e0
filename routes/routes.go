package routes

import (
	"time"

	"slipsync/controllers/generatedslips"
	"slipsync/controllers/masterslips"
	"slipsync/controllers/slips"
	"slipsync/controllers/system"
	"slipsync/database"
	"slipsync/middlewares"
	"slipsync/services"

	"github.com/gofiber/fiber/v2"
)

type Deps struct {
	Gateway   *database.Gateway
	Placement *services.PlacementService
	Sync      *services.SyncProcessor
	Slips     *services.SlipService

	EngineVersion  string
	CORSOrigins    string
	RequestTimeout time.Duration
}

func Setup(app *fiber.App, d Deps) {
	app.Use(middlewares.CORS(d.CORSOrigins))

	app.Get("/", system.Root(d.Gateway, d.EngineVersion))
	app.Get("/health", system.Health(d.Gateway))
	app.Post("/reconnect", system.Reconnect(d.Gateway))

	api := app.Group("/api", middlewares.RequireStorage(d.Gateway), middlewares.RequestTimeout(d.RequestTimeout))

	api.Get("/placement-slips/:masterSlipId", slips.GetPlacementSlips(d.Placement))
	api.Post("/sync-slips", slips.SyncSlips(d.Sync))

	master := api.Group("/master-slips")
	master.Get("/", masterslips.List(d.Slips))
	master.Post("/", masterslips.Create(d.Slips))
	master.Get("/:id", masterslips.Get(d.Slips))
	master.Patch("/:id", masterslips.Update(d.Slips))
	master.Get("/:id/generated-slips", masterslips.ListGenerated(d.Slips))
	master.Post("/:id/generated-slips", masterslips.CreateGenerated(d.Slips))
	master.Delete("/:id/slips", masterslips.DeleteSlips(d.Slips))

	generated := api.Group("/generated-slips")
	generated.Get("/:id", generatedslips.Get(d.Slips))
	generated.Patch("/:id/status", generatedslips.UpdateStatus(d.Slips))

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not found",
			"message": "route " + c.Method() + " " + c.Path() + " does not exist",
		})
	})
}
