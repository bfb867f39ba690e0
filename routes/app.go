package routes

import (
	"slipsync/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// NewApp builds the fiber app with the shared middleware stack and every route.
func NewApp(d Deps, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "slipsync",
		ErrorHandler: helpers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if accessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
		}))
	}

	Setup(app, d)
	return app
}
