package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// RelationRepository is the PostgreSQL-backed authz.Authorizer: direct
// tuples live in a single relation_tuple table, and hierarchical
// inheritance (Table -> Namespace -> Warehouse -> Project) is walked in Go
// via authz.ParentKind rather than a recursive query, since the hierarchy
// depth is small and fixed. The walk ends at Project: relations held on
// Server are not consulted.
type RelationRepository struct {
	conn *Connection
}

// NewRelationRepository builds a RelationRepository over conn.
func NewRelationRepository(conn *Connection) *RelationRepository {
	return &RelationRepository{conn: conn}
}

// directRelations is the closed set of direct relations this adapter
// recognizes. relationsGrant decides what each one authorizes: ownership
// and the standing admin relations authorize every action, while
// manage-grants and describe/select/create/modify are the narrower
// per-capability relations.
var directRelations = []authz.Relation{
	authz.RelationOwnership,
	authz.RelationAdmin,
	authz.RelationOperator,
	authz.RelationProjectAdmin,
	authz.RelationSecurityAdmin,
	authz.RelationDataAdmin,
	authz.RelationManageGrants,
	authz.RelationModify,
	authz.RelationCreate,
	authz.RelationSelect,
	authz.RelationDescribe,
}

// Check collects every relation subject holds on object and its
// ancestors (see relationsInChain), returning Hidden if there are none,
// Allowed if relationsGrant finds one that authorizes action, and
// Forbidden if subject holds some relation but none that authorizes it.
func (r *RelationRepository) Check(ctx context.Context, subject authz.Subject, object authz.ObjectRef, action authz.Action) (authz.Visibility, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.relation.check")
	defer span.End()

	relations, err := r.relationsInChain(ctx, subject, object)
	if err != nil {
		obs.HandleSpanError(&span, "check relation failed", err)
		return "", err
	}

	if len(relations) == 0 {
		return authz.VisibilityHidden, nil
	}

	if relationsGrant(relations, action) {
		return authz.VisibilityAllowed, nil
	}

	return authz.VisibilityForbidden, nil
}

// relationsGrant reports whether any held relation is broad enough to
// authorize action. Ownership and the standing admin relations authorize
// everything; the narrower relations only authorize their own scope.
func relationsGrant(held map[authz.Relation]bool, action authz.Action) bool {
	for _, broad := range []authz.Relation{
		authz.RelationOwnership, authz.RelationAdmin, authz.RelationOperator,
		authz.RelationProjectAdmin, authz.RelationSecurityAdmin, authz.RelationDataAdmin,
	} {
		if held[broad] {
			return true
		}
	}

	switch action {
	case authz.ActionReadData, authz.ActionGetMetadata, authz.ActionIncludeInList:
		return held[authz.RelationDescribe] || held[authz.RelationSelect] || held[authz.RelationModify]
	case authz.ActionWriteData, authz.ActionCommit, authz.ActionUpdateProperties,
		authz.ActionCreateTable, authz.ActionCreateView, authz.ActionCreateNamespace:
		return held[authz.RelationModify] || held[authz.RelationCreate]
	case authz.ActionDrop, authz.ActionRename, authz.ActionUndrop:
		return held[authz.RelationModify]
	default:
		return held[authz.RelationManageGrants] || held[authz.RelationPassGrants] || held[authz.RelationRoleCreator]
	}
}

// relationsInChain collects every direct relation subject holds on
// object or any of its ancestors, up to and including Project; relations
// on Server are not consulted.
func (r *RelationRepository) relationsInChain(ctx context.Context, subject authz.Subject, object authz.ObjectRef) (map[authz.Relation]bool, error) {
	held := map[authz.Relation]bool{}

	kind, id := object.Kind, object.ID
	for {
		rels, err := r.directRelationsOn(ctx, subject, authz.ObjectRef{Kind: kind, ID: id})
		if err != nil {
			return nil, err
		}

		for _, rel := range rels {
			held[rel] = true
		}

		parent, ok := authz.ParentKind(kind)
		if !ok {
			break
		}

		parentID, err := r.parentID(ctx, kind, id)
		if err != nil {
			return nil, err
		}

		if parentID == "" {
			break
		}

		kind, id = parent, parentID
	}

	return held, nil
}

// directRelationsOn returns the relations subject holds directly on
// object, ignoring inheritance.
func (r *RelationRepository) directRelationsOn(ctx context.Context, subject authz.Subject, object authz.ObjectRef) ([]authz.Relation, error) {
	query, args, err := psql.Select("relation").
		From("relation_tuple").
		Where(squirrel.Eq{
			"subject_type": subject.Type,
			"subject_id":   subject.ID,
			"object_kind":  string(object.Kind),
			"object_id":    object.ID,
		}).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translatePGError(err, "relation_tuple")
	}
	defer rows.Close()

	var relations []authz.Relation

	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, errs.NewInternal("scan relation", err)
		}

		relations = append(relations, authz.Relation(rel))
	}

	return relations, rows.Err()
}

// parentID looks up the id of kind's parent resource for id, e.g. a
// namespace's warehouse_id or a table's namespace_id. Resource kinds
// other than Table/View/Namespace/Warehouse (Project included) have no
// parent lookup and return "", which ends the walk.
func (r *RelationRepository) parentID(ctx context.Context, kind authz.ResourceKind, id string) (string, error) {
	var table, column string

	switch kind {
	case authz.KindTable, authz.KindView:
		table, column = "tabular", "namespace_id"
	case authz.KindNamespace:
		table, column = "namespace", "warehouse_id"
	case authz.KindWarehouse:
		table, column = "warehouse", "project_id"
	default:
		return "", nil
	}

	query, args, err := psql.Select(column).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return "", errs.NewInternal("build select", err)
	}

	var parentID string
	if err := r.conn.DB().QueryRowContext(ctx, query, args...).Scan(&parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", translatePGError(err, table)
	}

	return parentID, nil
}

// CheckBatch evaluates checks for subject, caching relationsInChain's
// result per object within a single call where objects repeat.
func (r *RelationRepository) CheckBatch(ctx context.Context, subject authz.Subject, checks []authz.ObjectActionPair) ([]bool, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.relation.check_batch")
	defer span.End()

	cache := map[authz.ObjectRef]map[authz.Relation]bool{}
	result := make([]bool, len(checks))

	for i, c := range checks {
		held, ok := cache[c.Object]
		if !ok {
			var err error

			held, err = r.relationsInChain(ctx, subject, c.Object)
			if err != nil {
				obs.HandleSpanError(&span, "batch check failed", err)
				return nil, err
			}

			cache[c.Object] = held
		}

		result[i] = len(held) > 0 && relationsGrant(held, c.Action)
	}

	return result, nil
}

// TuplesForObject returns every tuple naming (kind, id) as its object,
// used by the authorization-migration sweep to find tuples that need
// their tabular identifier rewritten.
func (r *RelationRepository) TuplesForObject(ctx context.Context, kind authz.ResourceKind, id string) ([]authz.Tuple, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.relation.tuples_for_object")
	defer span.End()

	query, args, err := psql.Select("subject_type", "subject_id", "relation", "object_kind", "object_id").
		From("relation_tuple").
		Where(squirrel.Eq{"object_kind": string(kind), "object_id": id}).
		ToSql()
	if err != nil {
		return nil, errs.NewInternal("build select", err)
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		obs.HandleSpanError(&span, "select tuples for object failed", err)
		return nil, translatePGError(err, "relation_tuple")
	}
	defer rows.Close()

	var out []authz.Tuple

	for rows.Next() {
		var t authz.Tuple
		var objectKind string

		if err := rows.Scan(&t.Subject.Type, &t.Subject.ID, &t.Relation, &objectKind, &t.Object.ID); err != nil {
			return nil, errs.NewInternal("scan tuple", err)
		}

		t.Object.Kind = authz.ResourceKind(objectKind)
		out = append(out, t)
	}

	return out, rows.Err()
}

// Write inserts tuples, ignoring a tuple that already exists.
func (r *RelationRepository) Write(ctx context.Context, tuples []authz.Tuple) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.relation.write")
	defer span.End()

	for _, t := range tuples {
		query, args, err := psql.Insert("relation_tuple").
			Columns("subject_type", "subject_id", "relation", "object_kind", "object_id").
			Values(t.Subject.Type, t.Subject.ID, string(t.Relation), string(t.Object.Kind), t.Object.ID).
			Suffix("ON CONFLICT (subject_type, subject_id, relation, object_kind, object_id) DO NOTHING").
			ToSql()
		if err != nil {
			return errs.NewInternal("build insert", err)
		}

		if _, err := r.conn.DB().ExecContext(ctx, query, args...); err != nil {
			obs.HandleSpanError(&span, "write tuple failed", err)
			return translatePGError(err, "relation_tuple")
		}
	}

	return nil
}

// Delete removes tuples; a tuple that does not exist is a no-op.
func (r *RelationRepository) Delete(ctx context.Context, tuples []authz.Tuple) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "postgres.relation.delete")
	defer span.End()

	for _, t := range tuples {
		query, args, err := psql.Delete("relation_tuple").
			Where(squirrel.Eq{
				"subject_type": t.Subject.Type,
				"subject_id":   t.Subject.ID,
				"relation":     string(t.Relation),
				"object_kind":  string(t.Object.Kind),
				"object_id":    t.Object.ID,
			}).
			ToSql()
		if err != nil {
			return errs.NewInternal("build delete", err)
		}

		if _, err := r.conn.DB().ExecContext(ctx, query, args...); err != nil {
			obs.HandleSpanError(&span, "delete tuple failed", err)
			return translatePGError(err, "relation_tuple")
		}
	}

	return nil
}
