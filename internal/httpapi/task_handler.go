package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lakekeeper/catalog/internal/domain/task"
	svctaskqueue "github.com/lakekeeper/catalog/internal/services/taskqueue"
)

// TaskHandler exposes the task-queue management endpoints (worker-facing
// pick/heartbeat/record-* calls are made by internal workers, not over
// this surface, and live under cmd/catalog-worker instead).
type TaskHandler struct {
	svc *svctaskqueue.Service
}

// NewTaskHandler builds a TaskHandler over svc.
func NewTaskHandler(svc *svctaskqueue.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// RequestStop handles POST /v1/tasks/stop.
func (h *TaskHandler) RequestStop(c *fiber.Ctx) error {
	var body struct {
		TaskIDs []string `json:"taskIds"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.svc.RequestStop(c.UserContext(), body.TaskIDs); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Cancel handles POST /v1/tasks/cancel.
func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
	var body struct {
		Filter       task.CancelFilter `json:"filter"`
		Queue        string            `json:"queue"`
		ForceRunning bool              `json:"forceRunning"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	n, err := h.svc.Cancel(c.UserContext(), body.Filter, body.Queue, body.ForceRunning)
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"cancelled": n})
}
