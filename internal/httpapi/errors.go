// Package httpapi wires the REST surface: a fiber router, per-resource
// handlers, and the error-translation layer that maps the catalog's
// typed errs kinds onto HTTP status codes and a uniform JSON body.
package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/errs"
)

// errorBody is the uniform JSON shape returned for every error response.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func body(kind, message string) errorBody {
	var b errorBody
	b.Error.Type = kind
	b.Error.Message = message

	return b
}

// WithError dispatches err to the matching HTTP status and JSON body. An
// error of an unrecognized type is treated as internal and logged by the
// caller before this is reached.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case errs.NotFoundError:
		return c.Status(fiber.StatusNotFound).JSON(body("NotFound", e.Error()))
	case errs.ConflictError:
		return c.Status(fiber.StatusConflict).JSON(body("Conflict", e.Error()))
	case errs.BadRequestError:
		return c.Status(fiber.StatusBadRequest).JSON(body("BadRequest", e.Error()))
	case errs.ForbiddenError:
		return c.Status(fiber.StatusForbidden).JSON(body("Forbidden", e.Error()))
	case errs.PreconditionFailedError:
		return c.Status(fiber.StatusPreconditionFailed).JSON(body("PreconditionFailed", e.Error()))
	case errs.MethodNotAllowedError:
		return c.Status(fiber.StatusMethodNotAllowed).JSON(body("MethodNotAllowed", e.Error()))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(body("InternalServerError", "an internal error occurred"))
	}
}
