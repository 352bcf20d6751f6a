// Package request decodes path params and JSON bodies for handlers.
package request

import (
	"strconv"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ParamUUID parses the named path param as a non-nil uuid.
func ParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(name, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.NewValidationError(name, "must be a valid uuid")
	}
	return id, nil
}

// QueryFloat parses a required float query param.
func QueryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, domain.NewValidationError(name, "is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be a number")
	}
	return v, nil
}

// Body decodes the JSON body into v and validates it.
func Body(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return domain.NewValidationError("", "Invalid request body")
	}
	return validation.Struct(v)
}
