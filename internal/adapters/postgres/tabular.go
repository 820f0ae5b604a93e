package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/httputil"
	"github.com/lakekeeper/catalog/internal/obs"
)

// TabularRepository is the PostgreSQL-backed tabular store. Its methods
// assume a transaction was already opened by the owning service for any
// operation that needs row-level locking (rename, drop, commit);
// single-row reads run directly against the resolver pool.
type TabularRepository struct {
	conn *Connection
}

// NewTabularRepository builds a TabularRepository over conn.
func NewTabularRepository(conn *Connection) *TabularRepository {
	return &TabularRepository{conn: conn}
}

var tabularColumns = []string{
	"id", "namespace_id", "warehouse_id", "name", "kind", "fs_protocol", "fs_location",
	"metadata_location", "current_metadata", "metadata_pointer_seq", "protected", "deleted_at",
	"cleanup_task_id", "created_at", "updated_at",
}

func scanTabular(row interface{ Scan(...any) error }) (*tabular.Tabular, error) {
	m := &tabular.PostgreSQLModel{}

	if err := row.Scan(
		&m.ID, &m.NamespaceID, &m.WarehouseID, &m.Name, &m.Kind, &m.FSProtocol, &m.FSLocation,
		&m.MetadataLocation, &m.CurrentMetadata, &m.MetadataPointerSeq, &m.Protected, &m.DeletedAt,
		&m.CleanupTaskID, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return m.ToEntity(), nil
}

// splitLocation divides a full URL into (scheme, rest) for the
// fs_protocol/fs_location column split.
func splitLocation(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse location: %w", err)
	}

	rest := strings.TrimPrefix(location, u.Scheme+"://")

	return u.Scheme, rest, nil
}

// Create inserts a tabular, respecting the staged-create overwrite and
// regular-create-finalizes-staged rules: the caller (tabular service)
// decides which of insert/update applies by first probing FindByName,
// which reads through the connection pool rather than tx.
func (r *TabularRepository) Create(ctx context.Context, tx *sql.Tx, t *tabular.Tabular) (*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.create")
	defer span.End()

	protocol, rest, err := splitLocation(t.Location)
	if err != nil {
		return nil, errs.NewBadRequest("tabular", err.Error(), err)
	}

	query, args, err := psql.Insert("tabular").
		Columns("id", "namespace_id", "warehouse_id", "name", "kind", "fs_protocol", "fs_location",
			"metadata_location", "protected", "created_at", "updated_at").
		Values(t.ID, t.NamespaceID, t.WarehouseID, t.Name, string(t.Kind), protocol, rest,
			t.MetadataLocation, t.Protected, t.CreatedAt, t.UpdatedAt).
		Suffix("RETURNING " + columnList(tabularColumns)).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build insert", err)
	}

	out, err := scanTabular(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		obs.HandleSpanError(&span, "insert tabular failed", err)
		return nil, translatePGError(err, "tabular")
	}

	return out, nil
}

// Update overwrites an existing row's mutable columns in place, used to
// finalize or re-stage a tabular that already has a row (t.ID is unchanged).
func (r *TabularRepository) Update(ctx context.Context, tx *sql.Tx, t *tabular.Tabular) (*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.update")
	defer span.End()

	protocol, rest, err := splitLocation(t.Location)
	if err != nil {
		return nil, errs.NewBadRequest("tabular", err.Error(), err)
	}

	query, args, err := psql.Update("tabular").
		Set("name", t.Name).
		Set("kind", string(t.Kind)).
		Set("fs_protocol", protocol).
		Set("fs_location", rest).
		Set("metadata_location", t.MetadataLocation).
		Set("updated_at", t.UpdatedAt).
		Where(squirrel.Eq{"id": t.ID}).
		Suffix("RETURNING " + columnList(tabularColumns)).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build update", err)
	}

	out, err := scanTabular(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		obs.HandleSpanError(&span, "update tabular failed", err)
		return nil, translatePGError(err, "tabular")
	}

	return out, nil
}

// CheckLocationOverlap rejects loc if any other live tabular in warehouseID,
// other than excludeID, has a location that is an ancestor of, descendant
// of, or equal to loc. excludeID lets a staged-row overwrite re-check its
// new location without tripping over its own existing row; pass "" when
// checking a brand-new tabular. The fs_protocol/fs_location column split
// lets this run as an equality match plus two prefix comparisons rather than a full-table
// scan of parsed URLs.
func (r *TabularRepository) CheckLocationOverlap(ctx context.Context, tx *sql.Tx, warehouseID, loc, excludeID string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.check_location_overlap")
	defer span.End()

	protocol, rest, err := splitLocation(loc)
	if err != nil {
		return errs.NewBadRequest("tabular", err.Error(), err)
	}

	q := psql.Select("fs_location").
		From("tabular").
		Where(squirrel.Eq{"warehouse_id": warehouseID, "fs_protocol": protocol}).
		Where("deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Eq{"fs_location": rest},
			squirrel.Expr("? LIKE fs_location || '/%'", rest),
			squirrel.Expr("fs_location LIKE ? || '/%'", rest),
		})

	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}

	query, args, err := q.Limit(1).ToSql()
	if err != nil {
		return errs.NewInternal("build select", err)
	}

	var existing string

	err = tx.QueryRowContext(ctx, query, args...).Scan(&existing)

	switch {
	case err == nil:
		return errs.NewConflict("tabular", "location overlaps with an existing tabular's location", nil)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		obs.HandleSpanError(&span, "check location overlap failed", err)
		return translatePGError(err, "tabular")
	}
}

// AdvisoryLock acquires a transaction-scoped Postgres advisory lock keyed
// by key, released automatically at commit or rollback. Used to serialize
// the cross-namespace rename path against itself for a given destination
// namespace.
func (r *TabularRepository) AdvisoryLock(ctx context.Context, tx *sql.Tx, key string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.advisory_lock")
	defer span.End()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		obs.HandleSpanError(&span, "acquire advisory lock failed", err)
		return translatePGError(err, "tabular")
	}

	return nil
}

func (r *TabularRepository) Find(ctx context.Context, id string, includeDeleted bool) (*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.find")
	defer span.End()

	query := psql.Select(tabularColumns...).From("tabular").Where(squirrel.Eq{"id": id})
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	out, err := scanTabular(r.conn.DB().QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("tabular", "", err)
		}

		obs.HandleSpanError(&span, "select tabular failed", err)

		return nil, translatePGError(err, "tabular")
	}

	return out, nil
}

func (r *TabularRepository) FindByName(ctx context.Context, namespaceID, name string, includeStaged, includeDeleted bool) (*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.find_by_name")
	defer span.End()

	query := psql.Select(tabularColumns...).From("tabular").Where(squirrel.Eq{"namespace_id": namespaceID, "name": name})
	if !includeStaged {
		query = query.Where("metadata_location IS NOT NULL")
	}

	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	out, err := scanTabular(r.conn.DB().QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("tabular", "", err)
		}

		obs.HandleSpanError(&span, "select tabular by name failed", err)

		return nil, translatePGError(err, "tabular")
	}

	return out, nil
}

// LockForUpdate acquires a FOR UPDATE row lock on a tabular within tx,
// required before rename, drop, undrop, and set-protected to prevent a
// concurrent create under the same name.
func (r *TabularRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, id string) (*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.lock_for_update")
	defer span.End()

	query, args, err := psql.Select(tabularColumns...).
		From("tabular").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	out, err := scanTabular(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("tabular", "", err)
		}

		obs.HandleSpanError(&span, "lock tabular failed", err)

		return nil, translatePGError(err, "tabular")
	}

	return out, nil
}

// ListByNamespace runs the list_tabulars query with keyset pagination,
// filtered by the caller's staged/deleted/kind inclusion flags, and
// returns the opaque token for the next page alongside the rows.
func (r *TabularRepository) ListByNamespace(ctx context.Context, namespaceID string, flags tabular.ListFlags, limit int, cursor string) ([]*tabular.Tabular, string, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.list_by_namespace")
	defer span.End()

	cur, err := httputil.DecodeCursor(cursor)
	if err != nil {
		return nil, "", errs.NewBadRequest("tabular", "invalid page token", err)
	}

	query := psql.Select(tabularColumns...).From("tabular").Where(squirrel.Eq{"namespace_id": namespaceID})

	if !flags.IncludeStaged {
		query = query.Where("metadata_location IS NOT NULL")
	}

	if !flags.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	if flags.Kind != nil {
		query = query.Where(squirrel.Eq{"kind": string(*flags.Kind)})
	}

	query, _ = httputil.ApplyCursorPagination(query, cur, "ASC", limit)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, "", errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		obs.HandleSpanError(&span, "list tabulars failed", err)
		return nil, "", translatePGError(err, "tabular")
	}
	defer rows.Close()

	var out []*tabular.Tabular

	for rows.Next() {
		t, err := scanTabular(rows)
		if err != nil {
			return nil, "", errs.NewInternal("scan tabular", err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, "", errs.NewInternal("iterate tabulars", err)
	}

	hasMore := len(out) > limit
	out = httputil.PaginateRecords(cursor == "", hasMore, cur.PointsNext, out, limit, "ASC")

	nextToken := ""
	if hasMore && len(out) > 0 {
		last := out[len(out)-1]
		nc := httputil.CreateCursor(last.CreatedAt, last.ID, true)
		if nextToken, err = httputil.EncodeCursor(nc); err != nil {
			return nil, "", errs.NewInternal("encode cursor", err)
		}
	}

	return out, nextToken, nil
}

// Search performs a trigram free-text match over namespace name plus
// tabular name, best matches first, or an exact UUID match: a term equal
// to a tabular's id returns that single row.
func (r *TabularRepository) Search(ctx context.Context, warehouseID, term string, limit int) ([]*tabular.Tabular, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.search")
	defer span.End()

	query, args, err := psql.Select("t.id", "t.namespace_id", "t.warehouse_id", "t.name", "t.kind",
		"t.fs_protocol", "t.fs_location", "t.metadata_location", "t.current_metadata",
		"t.metadata_pointer_seq", "t.protected", "t.deleted_at", "t.cleanup_task_id",
		"t.created_at", "t.updated_at").
		Column("(t.id::text = ?) AS exact_match", term).
		Column("similarity(n.name_canonical || '.' || t.name, ?) AS dist", strings.ToLower(term)).
		From("tabular t").
		Join("namespace n ON n.id = t.namespace_id").
		Where(squirrel.Eq{"t.warehouse_id": warehouseID}).
		Where("t.deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Expr("t.id::text = ?", term),
			squirrel.Expr("similarity(n.name_canonical || '.' || t.name, ?) > 0.1", strings.ToLower(term)),
		}).
		OrderBy("exact_match DESC", "dist DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build search", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "search tabulars failed", err)
		return nil, translatePGError(err, "tabular")
	}
	defer rows.Close()

	var out []*tabular.Tabular

	for rows.Next() {
		m := &tabular.PostgreSQLModel{}

		var exactMatch bool
		var dist float64

		if err := rows.Scan(
			&m.ID, &m.NamespaceID, &m.WarehouseID, &m.Name, &m.Kind, &m.FSProtocol, &m.FSLocation,
			&m.MetadataLocation, &m.CurrentMetadata, &m.MetadataPointerSeq, &m.Protected, &m.DeletedAt,
			&m.CleanupTaskID, &m.CreatedAt, &m.UpdatedAt, &exactMatch, &dist,
		); err != nil {
			return nil, errs.NewInternal("scan search result", err)
		}

		if exactMatch {
			return []*tabular.Tabular{m.ToEntity()}, nil
		}

		out = append(out, m.ToEntity())
	}

	return out, rows.Err()
}

// Rename updates name and, for the cross-namespace path, namespace_id;
// the caller is responsible for locking both the source row and the
// destination namespace before calling this.
func (r *TabularRepository) Rename(ctx context.Context, tx *sql.Tx, id, name string, destNamespaceID *string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.rename")
	defer span.End()

	builder := psql.Update("tabular").Set("name", name).Set("updated_at", squirrel.Expr("now()"))
	if destNamespaceID != nil {
		builder = builder.Set("namespace_id", *destNamespaceID)
	}

	query, args, err := builder.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "rename tabular failed", err)
		return translatePGError(err, "tabular")
	}

	return checkRowsAffected(result, "tabular")
}

// CommitBatch applies a batch of TableCommit entries via two parameterized
// multi-row UPDATE statements (metadata blob, metadata pointer+location);
// both must affect exactly len(commits) rows or the call fails.
func (r *TabularRepository) CommitBatch(ctx context.Context, tx *sql.Tx, commits []tabular.TableCommit) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.commit_batch")
	defer span.End()

	if len(commits) == 0 {
		return nil
	}

	if len(commits) > tabular.MaxCommitsPerCall {
		return errs.NewBadRequest("tabular", "too many commits in a single call", nil)
	}

	pointerBuilder := squirrel.Case("id")
	blobBuilder := squirrel.Case("id")
	ids := make([]string, 0, len(commits))

	for _, c := range commits {
		pointerBuilder = pointerBuilder.When(squirrel.Expr("?", c.TabularID), squirrel.Expr("?", c.NewMetadataLoc))
		blobBuilder = blobBuilder.When(squirrel.Expr("?", c.TabularID), squirrel.Expr("?", c.NewMetadata))
		ids = append(ids, c.TabularID)
	}

	pointerQuery, pointerArgs, err := psql.Update("tabular").
		Set("metadata_location", pointerBuilder).
		Set("metadata_pointer_seq", squirrel.Expr("metadata_pointer_seq + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build pointer update", err)
	}

	blobQuery, blobArgs, err := psql.Update("tabular").
		Set("current_metadata", blobBuilder).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build blob update", err)
	}

	pointerResult, err := tx.ExecContext(ctx, pointerQuery, pointerArgs...)
	if err != nil {
		obs.HandleSpanError(&span, "commit tabular pointer update failed", err)
		return translatePGError(err, "tabular")
	}

	blobResult, err := tx.ExecContext(ctx, blobQuery, blobArgs...)
	if err != nil {
		obs.HandleSpanError(&span, "commit tabular blob update failed", err)
		return translatePGError(err, "tabular")
	}

	pointerN, err := pointerResult.RowsAffected()
	if err != nil {
		return errs.NewInternal("rows affected", err)
	}

	blobN, err := blobResult.RowsAffected()
	if err != nil {
		return errs.NewInternal("rows affected", err)
	}

	if int(pointerN) != len(commits) || int(blobN) != len(commits) {
		return errs.NewConflict("tabular", "concurrent metadata-pointer update", nil)
	}

	return nil
}

func (r *TabularRepository) SoftDelete(ctx context.Context, tx *sql.Tx, id, cleanupTaskID string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.soft_delete")
	defer span.End()

	query, args, err := psql.Update("tabular").
		Set("deleted_at", squirrel.Expr("now()")).
		Set("cleanup_task_id", cleanupTaskID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "soft delete tabular failed", err)
		return translatePGError(err, "tabular")
	}

	return checkRowsAffected(result, "tabular")
}

// Undrop clears deleted_at and returns the cleanup task id that was
// scheduled on soft-delete, so the caller can cancel it.
func (r *TabularRepository) Undrop(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.undrop")
	defer span.End()

	query, args, err := psql.Update("tabular").
		Set("deleted_at", nil).
		Set("cleanup_task_id", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		// The sub-select reads the row as it was before this UPDATE, so it
		// yields the task id being cleared rather than the new NULL.
		Suffix("RETURNING (SELECT prev.cleanup_task_id FROM tabular prev WHERE prev.id = tabular.id)").
		ToSql()
	if err != nil {
		return "", errs.NewInternal("build update", err)
	}

	var taskID sql.NullString
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errs.NewNotFound("tabular", "", err)
		}

		obs.HandleSpanError(&span, "undrop tabular failed", err)

		return "", translatePGError(err, "tabular")
	}

	return taskID.String, nil
}

func (r *TabularRepository) Purge(ctx context.Context, tx *sql.Tx, id string) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.purge")
	defer span.End()

	query, args, err := psql.Delete("tabular").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return errs.NewInternal("build delete", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "purge tabular failed", err)
		return translatePGError(err, "tabular")
	}

	return checkRowsAffected(result, "tabular")
}

func (r *TabularRepository) SetProtected(ctx context.Context, tx *sql.Tx, id string, protected bool) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.tabular.set_protected")
	defer span.End()

	query, args, err := psql.Update("tabular").
		Set("protected", protected).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errs.NewInternal("build update", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "set protected failed", err)
		return translatePGError(err, "tabular")
	}

	return checkRowsAffected(result, "tabular")
}
