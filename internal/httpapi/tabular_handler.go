package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	storageadapter "github.com/lakekeeper/catalog/internal/adapters/storage"
	"github.com/lakekeeper/catalog/internal/domain/authz"
	storagedomain "github.com/lakekeeper/catalog/internal/domain/storage"
	domaintabular "github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/errs"
	svctabular "github.com/lakekeeper/catalog/internal/services/tabular"
)

// TabularHandler exposes table/view create/rename/commit/drop/undrop/
// search/list/sign endpoints. Kind distinguishes whether this instance
// serves the /tables or /views surface, since both share the same engine.
type TabularHandler struct {
	engine     *svctabular.Engine
	authorizer authz.Authorizer
	kind       domaintabular.Kind
}

// NewTabularHandler builds a TabularHandler over engine for kind, using
// authorizer to resolve the read/write permissions a sign request is
// gated by.
func NewTabularHandler(engine *svctabular.Engine, authorizer authz.Authorizer, kind domaintabular.Kind) *TabularHandler {
	return &TabularHandler{engine: engine, authorizer: authorizer, kind: kind}
}

// objectKind maps this handler's tabular kind to its authz resource kind.
func (h *TabularHandler) objectKind() authz.ResourceKind {
	if h.kind == domaintabular.KindView {
		return authz.KindView
	}

	return authz.KindTable
}

// isAllowed reports whether subject may perform action on this handler's
// kind of object with the given id, defaulting to false on any error.
func (h *TabularHandler) isAllowed(ctx context.Context, subject authz.Subject, id string, action authz.Action) bool {
	visibility, err := h.authorizer.Check(ctx, subject, authz.ObjectRef{Kind: h.objectKind(), ID: id}, action)
	return err == nil && visibility == authz.VisibilityAllowed
}

// Create handles POST .../namespaces/:namespace_id/tables (or /views).
func (h *TabularHandler) Create(c *fiber.Ctx) error {
	var in domaintabular.CreateTabularInput
	if err := BindAndValidate(c, &in); err != nil {
		return HandleError(c, err)
	}

	in.Kind = h.kind

	// WithWarehouseProfile stashes the resolved storage.Profile in Locals
	// once per request, keyed off the :warehouse_id route parameter.
	profile, _ := c.Locals("storageProfile").(storagedomain.Profile)

	t, err := h.engine.Create(c.UserContext(), c.Params("warehouse_id"), c.Params("namespace_id"), profile, in)
	if err != nil {
		return HandleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(t)
}

// Rename handles POST .../tables/rename (or /views/rename).
func (h *TabularHandler) Rename(c *fiber.Ctx) error {
	var in domaintabular.RenameInput
	if err := BindAndValidate(c, &in); err != nil {
		return HandleError(c, err)
	}

	if err := h.engine.Rename(c.UserContext(), in); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CommitBatch handles POST .../tables/:id/transactions/commit.
func (h *TabularHandler) CommitBatch(c *fiber.Ctx) error {
	var body struct {
		Commits []domaintabular.TableCommit `json:"tableChanges"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, err)
	}

	if err := h.engine.CommitBatch(c.UserContext(), body.Commits); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Drop handles DELETE .../tables/:id (or /views/:id).
func (h *TabularHandler) Drop(c *fiber.Ctx) error {
	flags := domaintabular.DropFlags{
		Force:            c.QueryBool("force", false),
		PurgeImmediately: c.QueryBool("purgeRequested", false),
	}

	if err := h.engine.Drop(c.UserContext(), c.Params("id"), c.Params("warehouse_id"), flags); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Undrop handles POST .../tables/:id/undrop (or /views/:id/undrop).
func (h *TabularHandler) Undrop(c *fiber.Ctx) error {
	if err := h.engine.Undrop(c.UserContext(), c.Params("id")); err != nil {
		return HandleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Search handles GET .../warehouses/:warehouse_id/search.
func (h *TabularHandler) Search(c *fiber.Ctx) error {
	limit := 50
	results, err := h.engine.Search(c.UserContext(), c.Params("warehouse_id"), c.Query("term"), limit)
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"results": results})
}

// List handles GET .../namespaces/:namespace_id/tables (or /views).
func (h *TabularHandler) List(c *fiber.Ctx) error {
	kind := h.kind
	flags := domaintabular.ListFlags{
		IncludeStaged:  c.QueryBool("includeStaged", false),
		IncludeDeleted: c.QueryBool("includeDeleted", false),
		Kind:           &kind,
	}

	tabulars, next, err := h.engine.List(c.UserContext(), c.Params("namespace_id"), flags, 100, c.Query("pageToken"))
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(fiber.Map{"identifiers": tabulars, "next-page-token": next})
}

// Sign handles POST .../tables/:id/sign (or /views/:id/sign): resolves
// the target tabular's location and the caller's read/write permission
// on it, then runs the request through the warehouse's SigV4 signer.
func (h *TabularHandler) Sign(c *fiber.Ctx) error {
	var body struct {
		Method string `json:"method"`
		URI    string `json:"uri"`
		Region string `json:"region"`
		Body   []byte `json:"body,omitempty"`
	}

	if err := c.BodyParser(&body); err != nil {
		return HandleError(c, errs.NewBadRequest("sign", "malformed request body", err))
	}

	t, err := h.engine.Find(c.UserContext(), c.Params("id"))
	if err != nil {
		return HandleError(c, err)
	}

	profile, _ := c.Locals("storageProfile").(storagedomain.Profile)

	s3Profile, ok := profile.(*storageadapter.S3Profile)
	if !ok {
		return HandleError(c, errs.NewBadRequest("sign", "warehouse storage profile does not support request signing", nil))
	}

	subject := SubjectFromContext(c.UserContext())
	canRead := h.isAllowed(c.UserContext(), subject, t.ID, authz.ActionReadData)
	canWrite := h.isAllowed(c.UserContext(), subject, t.ID, authz.ActionWriteData)

	signer := storageadapter.NewSigner(s3Profile)

	result, err := signer.Sign(c.UserContext(), body.Method, body.URI, body.Body, body.Region, t.Location, canRead, canWrite)
	if err != nil {
		return HandleError(c, err)
	}

	return c.JSON(result)
}
