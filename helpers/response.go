package helpers

import (
	"errors"
	"log/slog"

	"slipsync/apperrors"
	"slipsync/repository"

	"github.com/gofiber/fiber/v2"
)

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func JSONCreated(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// JSONList writes a page of items with its pagination block.
func JSONList(c *fiber.Ctx, data any, page, limit int, total int64, pages int) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": pages,
		},
	})
}

// JSONError maps err onto its status code and the error envelope. Internal
// errors are logged and their message is not echoed to the client.
func JSONError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		message = "An unexpected error occurred"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   apperrors.Kind(err),
		"message": message,
	})
}

// ErrorHandler is the fiber fallback for errors that escape a handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"error":   "Request error",
			"message": fe.Message,
		})
	}
	return JSONError(c, err)
}

func ParseListQuery(c *fiber.Ctx) repository.ListQuery {
	return repository.ListQuery{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
}

// BodyMap decodes a JSON object body keeping numbers as json.Number.
func BodyMap(c *fiber.Ctx) (map[string]any, error) {
	var body map[string]any
	if err := decodeBody(c, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, apperrors.Validation("", "request body must be a JSON object")
	}
	return body, nil
}
