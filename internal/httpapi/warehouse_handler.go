package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/errs"
	svcwarehouse "github.com/lakekeeper/catalog/internal/services/warehouse"
)

// WarehouseHandler exposes warehouse-management endpoints.
type WarehouseHandler struct {
	svc *svcwarehouse.Service
}

// NewWarehouseHandler builds a WarehouseHandler over svc.
func NewWarehouseHandler(svc *svcwarehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{svc: svc}
}

// CreateWarehouse handles POST /v1/projects/:project_id/warehouses.
func (h *WarehouseHandler) CreateWarehouse(c *fiber.Ctx) error {
	var in warehouse.CreateWarehouseInput
	if err := c.BodyParser(&in); err != nil {
		return HandleError(c, errs.NewBadRequest("request", "malformed request body", err))
	}

	in.ProjectID = c.Params("project_id")

	if err := validate.Struct(in); err != nil {
		return HandleError(c, errs.NewBadRequest("request", "validation failed", err))
	}

	w, err := h.svc.Create(c.UserContext(), SubjectFromContext(c.UserContext()), in)
	if err != nil {
		return HandleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(w)
}

// GetWarehouse handles GET /v1/warehouses/:warehouse_id.
func (h *WarehouseHandler) GetWarehouse(c *fiber.Ctx) error {
	w, err := h.svc.Find(c.UserContext(), c.Params("warehouse_id"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(w)
}

// ListWarehouses handles GET /v1/projects/:project_id/warehouses.
func (h *WarehouseHandler) ListWarehouses(c *fiber.Ctx) error {
	warehouses, err := h.svc.ListByProject(c.UserContext(), c.Params("project_id"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"warehouses": warehouses})
}

// RenameWarehouse handles POST /v1/warehouses/:warehouse_id/rename.
func (h *WarehouseHandler) RenameWarehouse(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.Rename(c.UserContext(), c.Params("warehouse_id"), body.Name); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SetWarehouseStatus handles POST /v1/warehouses/:warehouse_id/status.
func (h *WarehouseHandler) SetWarehouseStatus(c *fiber.Ctx) error {
	var body struct {
		Status warehouse.Status `json:"status"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.SetStatus(c.UserContext(), c.Params("warehouse_id"), body.Status); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SetWarehouseProtection handles POST /v1/warehouses/:warehouse_id/protection.
func (h *WarehouseHandler) SetWarehouseProtection(c *fiber.Ctx) error {
	var body struct {
		Protected bool `json:"protected"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.SetProtected(c.UserContext(), c.Params("warehouse_id"), body.Protected); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteWarehouse handles DELETE /v1/warehouses/:warehouse_id.
func (h *WarehouseHandler) DeleteWarehouse(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("warehouse_id")); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
