package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/domain/project"
	svcproject "github.com/lakekeeper/catalog/internal/services/project"
)

// ProjectHandler exposes project-management endpoints.
type ProjectHandler struct {
	svc *svcproject.Service
}

// NewProjectHandler builds a ProjectHandler over svc.
func NewProjectHandler(svc *svcproject.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// CreateProject handles POST /v1/projects.
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var in project.CreateProjectInput
	if err := BindAndValidate(c, &in); err != nil {
		return HandleError(c, err)
	}

	p, err := h.svc.Create(c.UserContext(), SubjectFromContext(c.UserContext()), in)
	if err != nil {
		return HandleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(p)
}

// GetProject handles GET /v1/projects/:id.
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	p, err := h.svc.Find(c.UserContext(), c.Params("id"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(p)
}

// ListProjects handles GET /v1/projects.
func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.svc.ListAll(c.UserContext())
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"projects": projects})
}

// DeleteProject handles DELETE /v1/projects/:id.
func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
