package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/domain/namespace"
	svcnamespace "github.com/lakekeeper/catalog/internal/services/namespace"
)

// NamespaceHandler exposes namespace-management endpoints.
type NamespaceHandler struct {
	svc *svcnamespace.Service
}

// NewNamespaceHandler builds a NamespaceHandler over svc.
func NewNamespaceHandler(svc *svcnamespace.Service) *NamespaceHandler {
	return &NamespaceHandler{svc: svc}
}

// CreateNamespace handles POST /v1/warehouses/:warehouse_id/namespaces.
func (h *NamespaceHandler) CreateNamespace(c *fiber.Ctx) error {
	var in namespace.CreateNamespaceInput
	if err := BindAndValidate(c, &in); err != nil {
		return HandleError(c, err)
	}

	var parentID *string
	if p := c.Query("parent_id"); p != "" {
		parentID = &p
	}

	ns, err := h.svc.Create(c.UserContext(), SubjectFromContext(c.UserContext()), c.Params("warehouse_id"), parentID, in)
	if err != nil {
		return HandleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ns)
}

// GetNamespace handles GET /v1/namespaces/:id.
func (h *NamespaceHandler) GetNamespace(c *fiber.Ctx) error {
	ns, err := h.svc.Find(c.UserContext(), c.Params("id"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(ns)
}

// ListNamespaces handles GET /v1/warehouses/:warehouse_id/namespaces.
func (h *NamespaceHandler) ListNamespaces(c *fiber.Ctx) error {
	var parentID *string
	if p := c.Query("parent_id"); p != "" {
		parentID = &p
	}

	pageSize := 100
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}

	namespaces, next, err := h.svc.ListChildren(c.UserContext(), c.Params("warehouse_id"), parentID, pageSize, c.Query("page_token"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"namespaces": namespaces, "nextPageToken": next})
}

// SetNamespaceProperties handles POST /v1/namespaces/:id/properties.
func (h *NamespaceHandler) SetNamespaceProperties(c *fiber.Ctx) error {
	var body struct {
		Properties map[string]string `json:"properties"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.SetProperties(c.UserContext(), c.Params("id"), body.Properties); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SetNamespaceProtection handles POST /v1/namespaces/:id/protection.
func (h *NamespaceHandler) SetNamespaceProtection(c *fiber.Ctx) error {
	var body struct {
		Protected bool `json:"protected"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.SetProtected(c.UserContext(), c.Params("id"), body.Protected); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DropNamespace handles DELETE /v1/warehouses/:warehouse_id/namespaces/:id.
func (h *NamespaceHandler) DropNamespace(c *fiber.Ctx) error {
	recursive := c.QueryBool("recursive", false)
	force := c.QueryBool("force", false)

	result, err := h.svc.Drop(c.UserContext(), c.Params("warehouse_id"), c.Params("id"), recursive, force)
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(result)
}
