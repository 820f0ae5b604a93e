package httpapi

import (
	"github.com/gofiber/fiber/v2"

	domaincheck "github.com/lakekeeper/catalog/internal/domain/check"
	svccheck "github.com/lakekeeper/catalog/internal/services/check"
)

// CheckHandler exposes the batch-check coordinator endpoint.
type CheckHandler struct {
	coordinator *svccheck.Coordinator
}

// NewCheckHandler builds a CheckHandler over coordinator.
func NewCheckHandler(coordinator *svccheck.Coordinator) *CheckHandler {
	return &CheckHandler{coordinator: coordinator}
}

// Run handles POST /v1/permissions/check.
func (h *CheckHandler) Run(c *fiber.Ctx) error {
	var req domaincheck.Request
	if err := c.BodyParser(&req); err != nil {
		return HandleError(c, err)
	}

	resp, err := h.coordinator.Run(c.UserContext(), SubjectFromContext(c.UserContext()), req)
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(resp)
}
