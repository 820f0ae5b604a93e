package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lakekeeper/catalog/internal/errs"
)

// pgUniqueViolation, pgForeignKeyViolation and pgCheckViolation are the
// SQLSTATE codes translatePGError maps into typed catalog errors when the
// constraint name is not one it recognizes.
const (
	pgUniqueViolation    = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translatePGError maps a raw Postgres error into one of the catalog's
// typed errors, using the constraint name to pick a precise entity/kind
// where one is known and falling back to a generic conflict/bad-request
// classification by SQLSTATE otherwise.
func translatePGError(err error, entityType string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errs.NewInternal("database error", err)
	}

	switch pgErr.ConstraintName {
	case "warehouse_project_id_fkey":
		return errs.NewBadRequest(entityType, "project does not exist", pgErr)
	case "namespace_warehouse_id_fkey", "tabular_warehouse_id_fkey":
		return errs.NewBadRequest(entityType, "warehouse does not exist", pgErr)
	case "namespace_parent_id_fkey":
		return errs.NewBadRequest(entityType, "parent namespace does not exist", pgErr)
	case "tabular_namespace_id_fkey":
		return errs.NewBadRequest(entityType, "namespace does not exist", pgErr)
	case "warehouse_project_id_name_key":
		return errs.NewConflict(entityType, "warehouse name already exists in this project", pgErr)
	case "namespace_warehouse_id_name_canonical_key":
		return errs.NewConflict(entityType, "namespace name already exists in this warehouse", pgErr)
	case "tabular_namespace_id_name_key":
		return errs.NewConflict(entityType, "name already exists in this namespace", pgErr)
	case "tabular_fs_protocol_fs_location_key":
		return errs.NewConflict(entityType, "location already in use by another tabular", pgErr)
	case "task_warehouse_id_entity_type_entity_id_queue_key":
		return errs.NewConflict(entityType, "task already enqueued for this entity and queue", pgErr)
	case "task_log_task_id_attempt_key":
		return errs.NewConflict(entityType, "terminal log entry already recorded for this attempt", pgErr)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return errs.NewConflict(entityType, "duplicate "+entityType, pgErr)
	case pgForeignKeyViolation:
		return errs.NewBadRequest(entityType, "referenced "+entityType+" does not exist", pgErr)
	case pgCheckViolation:
		return errs.NewBadRequest(entityType, "invalid "+entityType+" value", pgErr)
	}

	if strings.Contains(pgErr.Message, "no rows") {
		return errs.NewNotFound(entityType, "", pgErr)
	}

	return errs.NewInternal("database error", pgErr)
}

// isForeignKeyViolation reports whether err is a Postgres foreign-key
// violation, regardless of which constraint. A delete-path caller uses
// this to override translatePGError's constraint-name switch: the same
// constraint names used to validate inserts (e.g. namespace_parent_id_fkey)
// fire on delete for the opposite reason — a referencing child row still
// exists — and need a different message than "does not exist".
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
