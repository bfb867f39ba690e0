package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	corsMethods = "GET,POST,PATCH,DELETE,OPTIONS"
	corsHeaders = "Origin, Content-Type, Accept, Authorization"
)

// CORS applies the cors middleware and answers every OPTIONS request with 204,
// including ones without Origin or Access-Control-Request-Method.
func CORS(origins string) fiber.Handler {
	if origins == "" {
		origins = "*"
	}
	handler := cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: corsMethods,
		AllowHeaders: corsHeaders,
	})

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodOptions || (c.Get(fiber.HeaderOrigin) != "" && c.Get(fiber.HeaderAccessControlRequestMethod) != "") {
			return handler(c)
		}
		if allow := allowedOrigin(origins, c.Get(fiber.HeaderOrigin)); allow != "" {
			c.Set(fiber.HeaderAccessControlAllowOrigin, allow)
		}
		c.Set(fiber.HeaderAccessControlAllowMethods, corsMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsHeaders)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func allowedOrigin(origins, origin string) string {
	if strings.TrimSpace(origins) == "*" {
		return "*"
	}
	for _, o := range strings.Split(origins, ",") {
		if origin != "" && strings.EqualFold(strings.TrimSpace(o), origin) {
			return origin
		}
	}
	return ""
}
