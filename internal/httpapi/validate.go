package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/errs"
)

var validate = validator.New()

// BindAndValidate parses the request body into dst and runs struct-tag
// validation over it, returning a BadRequestError for either failure so
// handlers can pass it straight to HandleError.
func BindAndValidate(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return errs.NewBadRequest("request", "malformed request body", err)
	}

	if err := validate.Struct(dst); err != nil {
		return errs.NewBadRequest("request", "validation failed", err)
	}

	return nil
}
