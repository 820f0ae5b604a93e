package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
	svcwarehouse "github.com/lakekeeper/catalog/internal/services/warehouse"
)

const headerCorrelationID = "X-Correlation-ID"
const headerRequestID = "X-Request-ID"

// WithCorrelationID stamps every request with a correlation id, echoed
// back on the response and propagated to downstream log lines.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := uuid.NewString()
		c.Set(headerCorrelationID, cid)
		c.Request().Header.Add(headerCorrelationID, cid)

		return c.Next()
	}
}

type subjectContextKey struct{}

// WithSubject extracts the authenticated principal from the request and
// attaches it to the request context for handlers and services to read.
// The principal is read off a trusted upstream proxy header; token
// verification itself happens at the proxy, not in this process.
func WithSubject() fiber.Handler {
	return func(c *fiber.Ctx) error {
		subjectID := c.Get(headerRequestID)
		if subjectID == "" {
			subjectID = "anonymous"
		}

		ctx := context.WithValue(c.UserContext(), subjectContextKey{}, authz.Subject{Type: "user", ID: subjectID})
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// SubjectFromContext extracts the principal WithSubject attached to ctx,
// defaulting to the anonymous subject if none is present.
func SubjectFromContext(ctx context.Context) authz.Subject {
	if s, ok := ctx.Value(subjectContextKey{}).(authz.Subject); ok {
		return s
	}

	return authz.Subject{Type: "user", ID: "anonymous"}
}

// WithWarehouseProfile resolves the :warehouse_id route parameter's
// decoded storage.Profile once and stashes it in Locals for handlers that
// need to validate a request location against it.
func WithWarehouseProfile(svc *svcwarehouse.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		warehouseID := c.Params("warehouse_id")
		if warehouseID == "" {
			return c.Next()
		}

		w, err := svc.Find(c.UserContext(), warehouseID)
		if err != nil {
			return HandleError(c, err)
		}

		c.Locals("storageProfile", w.Profile)
		c.Locals("warehouseStatus", w.Status)

		return c.Next()
	}
}

// RequireActiveWarehouse rejects a request with NotFound when the
// warehouse resolved by WithWarehouseProfile is not active, so that an
// inactive warehouse's namespaces, tables, and views behave as if they
// don't exist to every content-read/write path. It must run after
// WithWarehouseProfile, and is deliberately not applied to the
// warehouse-management routes themselves (get/rename/status/protection/
// delete), which must keep working on an inactive warehouse.
func RequireActiveWarehouse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, _ := c.Locals("warehouseStatus").(warehouse.Status)
		if status != warehouse.StatusActive {
			return HandleError(c, errs.NewNotFound("warehouse", "", nil))
		}

		return c.Next()
	}
}

// HandleError logs and translates a handler error into its HTTP response.
func HandleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	obs.Logger(c.UserContext()).Error(err.Error())

	return WithError(c, err)
}
