// Package authz wraps the domain authorizer with the
// require_<scope>_action / are_allowed_<scope>_actions_vec request shapes
// the HTTP layer calls on every mutating and read endpoint, translating
// the Hidden/Forbidden/Allowed visibility outcome into NotFound vs
// Forbidden errors so a denied subject cannot distinguish "does not
// exist" from "exists but you cannot see it".
package authz

import (
	"context"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// Guard is the service-layer façade over an authz.Authorizer.
type Guard struct {
	authorizer authz.Authorizer
}

// NewGuard builds a Guard over authorizer.
func NewGuard(authorizer authz.Authorizer) *Guard {
	return &Guard{authorizer: authorizer}
}

// Require checks a single (subject, object, action) and returns a typed
// error when denied: NotFound if the subject cannot see the object at
// all, Forbidden if they can see it but lack the action.
func (g *Guard) Require(ctx context.Context, subject authz.Subject, object authz.ObjectRef, action authz.Action) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "authz.require")
	defer span.End()

	visibility, err := g.authorizer.Check(ctx, subject, object, action)
	if err != nil {
		obs.HandleSpanError(&span, "authorization check failed", err)
		return errs.NewInternal("authorization check", err)
	}

	switch visibility {
	case authz.VisibilityAllowed:
		return nil
	case authz.VisibilityHidden:
		return errs.NewNotFound(string(object.Kind), "not found", nil)
	default:
		return errs.NewForbidden(subject.ID, string(action), object.ID)
	}
}

// AllowedVec bulk-evaluates checks for one subject, returning a
// same-length boolean vector in request order. A resource the subject
// cannot see at all is reported as not-allowed, not as an error, so
// batch callers can filter listings without per-item error handling.
func (g *Guard) AllowedVec(ctx context.Context, subject authz.Subject, checks []authz.ObjectActionPair) ([]bool, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "authz.allowed_vec")
	defer span.End()

	allowed, err := g.authorizer.CheckBatch(ctx, subject, checks)
	if err != nil {
		obs.HandleSpanError(&span, "batch authorization check failed", err)
		return nil, errs.NewInternal("batch authorization check", err)
	}

	return allowed, nil
}

// Grant writes a direct relation tuple, e.g. granting project-admin on a
// project or ownership on a newly created warehouse.
func (g *Guard) Grant(ctx context.Context, subject authz.Subject, relation authz.Relation, object authz.ObjectRef) error {
	return g.authorizer.Write(ctx, []authz.Tuple{{Subject: subject, Relation: relation, Object: object}})
}

// Revoke deletes a direct relation tuple.
func (g *Guard) Revoke(ctx context.Context, subject authz.Subject, relation authz.Relation, object authz.ObjectRef) error {
	return g.authorizer.Delete(ctx, []authz.Tuple{{Subject: subject, Relation: relation, Object: object}})
}

// GrantOwnership is the convenience form of Grant used on the project,
// warehouse and namespace create paths so the creator retains
// manage-grants over what they made. Creating a table or view grants no
// ownership.
func (g *Guard) GrantOwnership(ctx context.Context, subject authz.Subject, object authz.ObjectRef) error {
	return g.Grant(ctx, subject, authz.RelationOwnership, object)
}
