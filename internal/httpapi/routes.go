package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	svcwarehouse "github.com/lakekeeper/catalog/internal/services/warehouse"
)

// Handlers bundles every resource handler the router wires up, one
// handler struct per resource.
type Handlers struct {
	Project   *ProjectHandler
	Warehouse *WarehouseHandler
	Namespace *NamespaceHandler
	Table     *TabularHandler
	View      *TabularHandler
	Check     *CheckHandler
	Task      *TaskHandler
}

// NewRouter builds the fiber app and registers every route.
func NewRouter(h Handlers, warehouseSvc *svcwarehouse.Service) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Use(cors.New())
	f.Use(WithMetrics())
	f.Use(WithCorrelationID())
	f.Use(WithSubject())

	f.Get("/health", func(c *fiber.Ctx) error { return c.SendString("healthy") })
	f.Get("/metrics", MetricsHandler())

	v1 := f.Group("/v1")

	v1.Post("/projects", h.Project.CreateProject)
	v1.Get("/projects", h.Project.ListProjects)
	v1.Get("/projects/:id", h.Project.GetProject)
	v1.Delete("/projects/:id", h.Project.DeleteProject)

	v1.Post("/projects/:project_id/warehouses", h.Warehouse.CreateWarehouse)
	v1.Get("/projects/:project_id/warehouses", h.Warehouse.ListWarehouses)

	warehouses := v1.Group("/warehouses/:warehouse_id", WithWarehouseProfile(warehouseSvc))

	warehouses.Get("/", h.Warehouse.GetWarehouse)
	warehouses.Post("/rename", h.Warehouse.RenameWarehouse)
	warehouses.Post("/status", h.Warehouse.SetWarehouseStatus)
	warehouses.Post("/protection", h.Warehouse.SetWarehouseProtection)
	warehouses.Delete("/", h.Warehouse.DeleteWarehouse)

	// content is every route that reads or writes a warehouse's namespaces,
	// tables, or views; RequireActiveWarehouse makes all of it behave as
	// not-found while the warehouse is inactive (see middleware.go).
	// Warehouse self-management above stays reachable.
	content := warehouses.Group("/", RequireActiveWarehouse())

	content.Get("/search", h.Table.Search)

	content.Post("/namespaces", h.Namespace.CreateNamespace)
	content.Get("/namespaces", h.Namespace.ListNamespaces)
	content.Delete("/namespaces/:id", h.Namespace.DropNamespace)

	v1.Get("/namespaces/:id", h.Namespace.GetNamespace)
	v1.Post("/namespaces/:id/properties", h.Namespace.SetNamespaceProperties)
	v1.Post("/namespaces/:id/protection", h.Namespace.SetNamespaceProtection)

	tables := content.Group("/namespaces/:namespace_id/tables")
	tables.Post("/", h.Table.Create)
	tables.Get("/", h.Table.List)
	content.Post("/tables/rename", h.Table.Rename)
	content.Post("/tables/:id/transactions/commit", h.Table.CommitBatch)
	content.Delete("/tables/:id", h.Table.Drop)
	content.Post("/tables/:id/undrop", h.Table.Undrop)
	content.Post("/tables/:id/sign", h.Table.Sign)

	views := content.Group("/namespaces/:namespace_id/views")
	views.Post("/", h.View.Create)
	views.Get("/", h.View.List)
	content.Post("/views/rename", h.View.Rename)
	content.Delete("/views/:id", h.View.Drop)
	content.Post("/views/:id/undrop", h.View.Undrop)
	content.Post("/views/:id/sign", h.View.Sign)

	v1.Post("/permissions/check", h.Check.Run)

	v1.Post("/tasks/stop", h.Task.RequestStop)
	v1.Post("/tasks/cancel", h.Task.Cancel)

	return f
}
