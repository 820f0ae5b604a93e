// Package tabular implements the tabular engine's create/rename/commit/
// drop/undrop/search orchestration (location validation, staged-create
// semantics, protected-flag checks) on top of the postgres tabular
// adapter and the configured storage profile.
package tabular

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	domaintabular "github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/domain/task"
	storagedomain "github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// TaskEnqueuer schedules cleanup/expiration work; narrowed from
// task.Repository to what the drop/undrop path needs.
type TaskEnqueuer interface {
	EnqueueBatch(ctx context.Context, queue string, inputs []task.TaskInput) ([]string, error)
	RequestStop(ctx context.Context, taskIDs []string) error
	Cancel(ctx context.Context, filter task.CancelFilter, queue string, forceRunning bool) (int, error)
}

// Beginner opens the transaction each write operation runs inside,
// satisfied by *sql.DB and by internal/adapters/postgres.Connection.DB().
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Store is the transactional contract the tabular engine drives; it is
// satisfied by internal/adapters/postgres.TabularRepository.
type Store interface {
	Create(ctx context.Context, tx *sql.Tx, t *domaintabular.Tabular) (*domaintabular.Tabular, error)
	Update(ctx context.Context, tx *sql.Tx, t *domaintabular.Tabular) (*domaintabular.Tabular, error)
	Find(ctx context.Context, id string, includeDeleted bool) (*domaintabular.Tabular, error)
	FindByName(ctx context.Context, namespaceID, name string, includeStaged, includeDeleted bool) (*domaintabular.Tabular, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domaintabular.Tabular, error)
	ListByNamespace(ctx context.Context, namespaceID string, flags domaintabular.ListFlags, limit int, cursor string) ([]*domaintabular.Tabular, string, error)
	Search(ctx context.Context, warehouseID, term string, limit int) ([]*domaintabular.Tabular, error)
	Rename(ctx context.Context, tx *sql.Tx, id, name string, destNamespaceID *string) error
	CommitBatch(ctx context.Context, tx *sql.Tx, commits []domaintabular.TableCommit) error
	SoftDelete(ctx context.Context, tx *sql.Tx, id, cleanupTaskID string) error
	Undrop(ctx context.Context, tx *sql.Tx, id string) (string, error)
	Purge(ctx context.Context, tx *sql.Tx, id string) error
	SetProtected(ctx context.Context, tx *sql.Tx, id string, protected bool) error
	CheckLocationOverlap(ctx context.Context, tx *sql.Tx, warehouseID, location, excludeID string) error
	AdvisoryLock(ctx context.Context, tx *sql.Tx, key string) error
}

// Engine implements the create/rename/commit/drop/undrop/search protocol.
type Engine struct {
	db                Beginner
	store             Store
	tasks             TaskEnqueuer
	softDeleteDefault bool
	expirationDelay   time.Duration
}

// NewEngine builds an Engine over db/store/tasks. softDeleteDefault and
// expirationDelay govern drop_tabular when the caller does not override
// them explicitly via DropFlags.
func NewEngine(db Beginner, store Store, tasks TaskEnqueuer, softDeleteDefault bool, expirationDelay time.Duration) *Engine {
	return &Engine{db: db, store: store, tasks: tasks, softDeleteDefault: softDeleteDefault, expirationDelay: expirationDelay}
}

// Create implements the staged/regular create protocol: a staged create
// against an existing staged row overwrites it; a regular create against
// an existing staged row finalizes it; a regular create against an
// existing non-staged row fails with Conflict. The new location must
// also not overlap (as ancestor, descendant, or exact duplicate) any
// other live tabular's location in the warehouse.
func (e *Engine) Create(ctx context.Context, warehouseID, namespaceID string, profile storagedomain.Profile, in domaintabular.CreateTabularInput) (*domaintabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.create")
	defer span.End()

	if !profile.IsAllowedLocation(in.Location) {
		err := errs.NewBadRequest("tabular", "location outside warehouse base_location", nil)
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, err
	}

	existing, err := e.store.FindByName(ctx, namespaceID, in.Identifier.Name, true, false)
	if err != nil && !isNotFound(err) {
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, err
	}

	if existing != nil && !existing.Staged() && !in.Staged {
		err := errs.NewConflict("tabular", "a non-staged tabular with this name already exists", nil)
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, err
	}

	now := time.Now().UTC()

	t := &domaintabular.Tabular{
		ID:          uuid.NewString(),
		NamespaceID: namespaceID,
		WarehouseID: warehouseID,
		Name:        in.Identifier.Name,
		Kind:        in.Kind,
		Location:    in.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !in.Staged {
		t.MetadataLocation = in.MetadataLocation
	}

	// An existing staged row (no committed metadata pointer yet) is
	// overwritten/finalized in place rather than inserted alongside, since
	// the unique (namespace_id, name) index would otherwise reject the
	// second insert outright.
	overwriting := existing != nil && existing.Staged()
	if overwriting {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	if err := e.store.CheckLocationOverlap(ctx, tx, warehouseID, in.Location, t.ID); err != nil {
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, err
	}

	var created *domaintabular.Tabular
	if overwriting {
		created, err = e.store.Update(ctx, tx, t)
	} else {
		created, err = e.store.Create(ctx, tx, t)
	}
	if err != nil {
		obs.HandleSpanError(&span, "create tabular failed", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.NewInternal("commit transaction", err)
	}

	return created, nil
}

// Rename moves a tabular to a new name and/or namespace. The source must
// be neither soft-deleted nor staged (no committed metadata pointer), and
// the destination name must not already be taken in the target namespace.
func (e *Engine) Rename(ctx context.Context, in domaintabular.RenameInput) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.rename")
	defer span.End()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	source, err := e.store.LockForUpdate(ctx, tx, in.SourceID)
	if err != nil {
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	if source.SoftDeleted() {
		err := errs.NewBadRequest("tabular", "cannot rename a soft-deleted tabular", nil)
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	if source.Staged() {
		err := errs.NewBadRequest("tabular", "cannot rename a staged tabular with no committed metadata", nil)
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	destNamespaceID := source.NamespaceID
	if in.DestNamespaceID != nil {
		destNamespaceID = *in.DestNamespaceID

		// Serializes concurrent cross-namespace renames that target the
		// same destination namespace, so the collision probe below can't
		// race another transaction's insert or rename between the check
		// and this transaction's own update.
		if err := e.store.AdvisoryLock(ctx, tx, destNamespaceID); err != nil {
			obs.HandleSpanError(&span, "rename tabular failed", err)
			return err
		}
	}

	existing, err := e.store.FindByName(ctx, destNamespaceID, in.DestName, true, false)
	if err != nil && !isNotFound(err) {
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	if existing != nil {
		err := errs.NewConflict("tabular", "a tabular already exists with this name in the destination namespace", nil)
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	if err := e.store.Rename(ctx, tx, in.SourceID, in.DestName, in.DestNamespaceID); err != nil {
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// CommitBatch applies a commit_transaction batch of metadata-pointer
// updates, rejecting the whole batch with Conflict if the optimistic
// expected_metadata_location check fails for any element.
func (e *Engine) CommitBatch(ctx context.Context, commits []domaintabular.TableCommit) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.commit_batch")
	defer span.End()

	if len(commits) == 0 {
		return nil
	}

	if len(commits) > domaintabular.MaxCommitsPerCall {
		return errs.NewBadRequest("tabular", "commit batch exceeds maximum size", nil)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	for _, c := range commits {
		current, err := e.store.LockForUpdate(ctx, tx, c.TabularID)
		if err != nil {
			obs.HandleSpanError(&span, "commit batch failed", err)
			return err
		}

		if c.ExpectedMetadata != nil {
			if current.MetadataLocation == nil || *current.MetadataLocation != *c.ExpectedMetadata {
				err := errs.NewConflict("tabular", "expected_metadata_location does not match current pointer", nil)
				obs.HandleSpanError(&span, "commit batch failed", err)
				return err
			}
		}
	}

	if err := e.store.CommitBatch(ctx, tx, commits); err != nil {
		obs.HandleSpanError(&span, "commit batch failed", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// Drop removes a tabular. A protected tabular can only be dropped with
// force=true. When purgeImmediately is set, or soft delete is disabled
// for the engine, the row is deleted synchronously (its storage data is
// not touched). Otherwise the row is soft-deleted and a cleanup task is
// enqueued to run after the engine's expiration delay.
func (e *Engine) Drop(ctx context.Context, id, warehouseID string, flags domaintabular.DropFlags) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.drop")
	defer span.End()

	t, err := e.store.Find(ctx, id, false)
	if err != nil {
		obs.HandleSpanError(&span, "drop tabular failed", err)
		return err
	}

	if t.Protected && !flags.Force {
		err := errs.NewConflict("tabular", "tabular is protected", nil)
		obs.HandleSpanError(&span, "drop tabular failed", err)
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	purge := flags.PurgeImmediately || !e.softDeleteDefault

	if purge {
		if err := e.store.Purge(ctx, tx, id); err != nil {
			obs.HandleSpanError(&span, "drop tabular failed", err)
			return err
		}

		if err := tx.Commit(); err != nil {
			return errs.NewInternal("commit transaction", err)
		}

		return nil
	}

	scheduleFor := time.Now().UTC().Add(e.expirationDelay)

	taskIDs, err := e.tasks.EnqueueBatch(ctx, "tabular-expiration", []task.TaskInput{{
		Queue: "tabular-expiration",
		Metadata: task.Metadata{
			Warehouse:   warehouseID,
			EntityType:  string(t.Kind),
			EntityID:    id,
			ScheduleFor: &scheduleFor,
		},
	}})
	if err != nil {
		obs.HandleSpanError(&span, "drop tabular failed", err)
		return err
	}

	var cleanupTaskID string
	if len(taskIDs) > 0 {
		cleanupTaskID = taskIDs[0]
	}

	if err := e.store.SoftDelete(ctx, tx, id, cleanupTaskID); err != nil {
		obs.HandleSpanError(&span, "drop tabular failed", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// Undrop reverses a pending soft-delete, stopping its scheduled cleanup
// task before it runs.
func (e *Engine) Undrop(ctx context.Context, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.undrop")
	defer span.End()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	cleanupTaskID, err := e.store.Undrop(ctx, tx, id)
	if err != nil {
		obs.HandleSpanError(&span, "undrop tabular failed", err)
		return err
	}

	if cleanupTaskID != "" {
		// Cancel removes the task while it is still scheduled; RequestStop
		// covers a task a worker has already picked up.
		if _, err := e.tasks.Cancel(ctx, task.CancelFilter{TaskIDs: []string{cleanupTaskID}}, "tabular-expiration", false); err != nil {
			obs.HandleSpanError(&span, "undrop tabular failed", err)
			return err
		}

		if err := e.tasks.RequestStop(ctx, []string{cleanupTaskID}); err != nil {
			obs.HandleSpanError(&span, "undrop tabular failed", err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// PurgeExpired permanently removes a soft-deleted tabular's row and
// metadata, invoked by the expiration-task worker once a tabular's
// scheduled grace period has elapsed.
func (e *Engine) PurgeExpired(ctx context.Context, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "tabular.purge_expired")
	defer span.End()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewInternal("begin transaction", err)
	}
	defer tx.Rollback()

	if err := e.store.Purge(ctx, tx, id); err != nil {
		obs.HandleSpanError(&span, "purge tabular failed", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewInternal("commit transaction", err)
	}

	return nil
}

// Find looks up a live tabular by id, used by the sign endpoint to
// resolve the location a signing request is scoped to.
func (e *Engine) Find(ctx context.Context, id string) (*domaintabular.Tabular, error) {
	return e.store.Find(ctx, id, false)
}

// Search runs a free-text lookup over a warehouse's tabulars.
func (e *Engine) Search(ctx context.Context, warehouseID, term string, limit int) ([]*domaintabular.Tabular, error) {
	return e.store.Search(ctx, warehouseID, term, limit)
}

// List returns a namespace's tabulars matching flags, keyset-paginated
// by the opaque cursor token, and the token for the next page (empty if
// this was the last page).
func (e *Engine) List(ctx context.Context, namespaceID string, flags domaintabular.ListFlags, limit int, cursor string) ([]*domaintabular.Tabular, string, error) {
	return e.store.ListByNamespace(ctx, namespaceID, flags, limit, cursor)
}

// isNotFound reports whether err is the catalog's NotFoundError kind.
func isNotFound(err error) bool {
	_, ok := err.(errs.NotFoundError)
	return ok
}
