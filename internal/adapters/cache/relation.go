// Package cache wraps an authz.Authorizer with a Redis-backed decision
// cache addressed at the single-decision granularity the batch-check
// coordinator drives.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/obs"
)

// DefaultTTL bounds how long a cached allow/forbid/hidden decision is
// honored before the next check re-derives it from the relation store.
// A short TTL trades a cache hit for bounded staleness after a grant or
// revoke, rather than requiring active invalidation on every Write/Delete.
const DefaultTTL = 5 * time.Second

// Authorizer wraps an authz.Authorizer, caching Check decisions in Redis
// keyed by (subject, object, action) and leaving CheckBatch/Write/Delete
// to the underlying store: Write/Delete mutate the source of truth and
// must not be served from a cache that could mask the mutation.
type Authorizer struct {
	next   authz.Authorizer
	client *redis.Client
	ttl    time.Duration
}

// NewAuthorizer builds a caching Authorizer wrapping next.
func NewAuthorizer(next authz.Authorizer, client *redis.Client) *Authorizer {
	return &Authorizer{next: next, client: client, ttl: DefaultTTL}
}

// WithTTL overrides the cache entry lifetime.
func (a *Authorizer) WithTTL(ttl time.Duration) *Authorizer {
	a.ttl = ttl
	return a
}

func cacheKey(subject authz.Subject, object authz.ObjectRef, action authz.Action) string {
	return fmt.Sprintf("catalog:authz:%s:%s:%s:%s:%s:%s", subject.Type, subject.ID, object.Kind, object.ID, action, "v1")
}

// Check consults Redis before falling back to the wrapped Authorizer,
// caching the result on a miss. A Redis error is treated as a cache
// miss: the relation store remains the decision of record.
func (a *Authorizer) Check(ctx context.Context, subject authz.Subject, object authz.ObjectRef, action authz.Action) (authz.Visibility, error) {
	if a.client == nil {
		return a.next.Check(ctx, subject, object, action)
	}

	key := cacheKey(subject, object, action)

	if cached, err := a.client.Get(ctx, key).Result(); err == nil {
		return authz.Visibility(cached), nil
	}

	visibility, err := a.next.Check(ctx, subject, object, action)
	if err != nil {
		return "", err
	}

	if err := a.client.Set(ctx, key, string(visibility), a.ttl).Err(); err != nil {
		obs.Logger(ctx).Warnw("authz cache write failed", "error", err)
	}

	return visibility, nil
}

// CheckBatch is not cached: a batch call already amortizes its hierarchy
// walk per distinct object, and caching it would require a multi-get
// keyed on the whole pair list for little benefit.
func (a *Authorizer) CheckBatch(ctx context.Context, subject authz.Subject, checks []authz.ObjectActionPair) ([]bool, error) {
	return a.next.CheckBatch(ctx, subject, checks)
}

// Write invalidates nothing explicitly; cached entries naturally expire
// within DefaultTTL, bounding staleness after a grant.
func (a *Authorizer) Write(ctx context.Context, tuples []authz.Tuple) error {
	return a.next.Write(ctx, tuples)
}

// Delete behaves like Write: the relation store is updated immediately,
// cached decisions drain out within DefaultTTL.
func (a *Authorizer) Delete(ctx context.Context, tuples []authz.Tuple) error {
	return a.next.Delete(ctx, tuples)
}
