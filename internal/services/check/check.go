// Package check implements the batch-check coordinator: resolving each
// request item to a concrete resource id (by id directly, or by
// namespace/name lookup), then fanning the resulting authz checks out
// across a bounded worker pool and collecting results back into the
// request's original order.
package check

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	domaincheck "github.com/lakekeeper/catalog/internal/domain/check"
	"github.com/lakekeeper/catalog/internal/errs"
	"github.com/lakekeeper/catalog/internal/obs"
)

// DefaultConcurrency bounds how many checks run against the authorizer
// at once for a single batch-check request.
const DefaultConcurrency = 10

// Resolver turns a name-addressed ResourceRef into a concrete resource
// id; id-addressed refs never call it. Returns ("", false, nil) when the
// name cannot be resolved to an existing resource.
type Resolver interface {
	Resolve(ctx context.Context, ref domaincheck.ResourceRef) (id string, ok bool, err error)
}

// Authorizer is the subset of authz.Authorizer the coordinator drives.
type Authorizer interface {
	Check(ctx context.Context, subject authz.Subject, object authz.ObjectRef, action authz.Action) (authz.Visibility, error)
}

// Coordinator implements the batch-check protocol.
type Coordinator struct {
	authorizer  Authorizer
	resolver    Resolver
	concurrency int
}

// NewCoordinator builds a Coordinator with DefaultConcurrency workers.
func NewCoordinator(authorizer Authorizer, resolver Resolver) *Coordinator {
	return &Coordinator{authorizer: authorizer, resolver: resolver, concurrency: DefaultConcurrency}
}

// WithConcurrency overrides the worker-pool width.
func (c *Coordinator) WithConcurrency(n int) *Coordinator {
	c.concurrency = n
	return c
}

// Run resolves and evaluates every item in req.Checks, preserving
// request order in the response. An item whose resource cannot be
// resolved defaults to not-allowed unless req.ErrorOnNotFound is set, in
// which case resolution failure aborts the whole batch.
func (c *Coordinator) Run(ctx context.Context, subject authz.Subject, req domaincheck.Request) (domaincheck.Response, error) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "check.run")
	defer span.End()

	resp := domaincheck.NewResponse(len(req.Checks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)

	for i, item := range req.Checks {
		i, item := i, item

		group.Go(func() error {
			allowed, resolvable, err := c.evaluate(groupCtx, subject, item)
			if err != nil {
				return err
			}

			if !resolvable && req.ErrorOnNotFound {
				return errs.NewNotFound(string(item.Resource.Kind), "resource not found", nil)
			}

			resp.Results[i] = domaincheck.Result{Allowed: allowed}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		obs.HandleSpanError(&span, "batch check failed", err)
		return domaincheck.Response{}, err
	}

	return resp, nil
}

// evaluate resolves item's resource id and, if found, evaluates it
// against the authorizer. resolvable is false when a name-addressed
// resource could not be found, in which case allowed is always false.
func (c *Coordinator) evaluate(ctx context.Context, subject authz.Subject, item domaincheck.Item) (allowed, resolvable bool, err error) {
	sub := subject
	if item.Subject != nil {
		sub = *item.Subject
	}

	id := ""
	if item.Resource.ID != nil {
		id, resolvable = *item.Resource.ID, true
	} else if c.resolver != nil {
		id, resolvable, err = c.resolver.Resolve(ctx, item.Resource)
		if err != nil {
			return false, false, err
		}
	}

	if !resolvable {
		return false, false, nil
	}

	visibility, err := c.authorizer.Check(ctx, sub, authz.ObjectRef{Kind: item.Resource.Kind, ID: id}, item.Action)
	if err != nil {
		return false, true, err
	}

	return visibility == authz.VisibilityAllowed, true, nil
}
