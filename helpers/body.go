package helpers

import (
	"bytes"
	"encoding/json"

	"slipsync/apperrors"

	"github.com/gofiber/fiber/v2"
)

func decodeBody(c *fiber.Ctx, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("", "invalid JSON body: "+err.Error())
	}
	return nil
}

// BodyItems accepts either a bare array of objects or an object wrapping the
// array under key.
func BodyItems(c *fiber.Ctx, key string) ([]map[string]any, error) {
	var raw any
	if err := decodeBody(c, &raw); err != nil {
		return nil, err
	}
	if obj, ok := raw.(map[string]any); ok {
		raw = obj[key]
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, apperrors.Validation(key, "must be an array of objects")
	}
	items := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.Validation(key, "must be an array of objects")
		}
		items = append(items, m)
	}
	return items, nil
}
