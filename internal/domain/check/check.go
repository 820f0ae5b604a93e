// Package check models the Batch Check Coordinator's request/response
// shapes: a heterogeneous, order-preserving list of per-resource checks
// resolved by id or by name, defaulting to "not allowed" on anything
// the coordinator cannot resolve.
package check

import "github.com/lakekeeper/catalog/internal/domain/authz"

// ResourceRef addresses a single check's target by id or by a namespaced
// name, optionally scoped to a warehouse (required for everything but a
// server-level check).
type ResourceRef struct {
	Kind        authz.ResourceKind `json:"kind"`
	ID          *string            `json:"id,omitempty"`
	Namespace   []string           `json:"namespace,omitempty"`
	Name        *string            `json:"name,omitempty"`
	WarehouseID *string            `json:"warehouseId,omitempty"`
}

// Item is one element of a batch-check request: a resource reference, the
// action to evaluate, and an optional subject override.
type Item struct {
	Resource ResourceRef     `json:"resource"`
	Action   authz.Action    `json:"action"`
	Subject  *authz.Subject  `json:"subject,omitempty"`
}

// Result is one element of a batch-check response, positionally aligned
// with the request's Items.
type Result struct {
	Allowed bool `json:"allowed"`
}

// Request is the full batch-check payload.
type Request struct {
	Checks         []Item `json:"checks"`
	ErrorOnNotFound bool  `json:"errorOnNotFound"`
}

// Response preserves Request.Checks' length and order; index i of
// Results corresponds to index i of the request's Checks.
type Response struct {
	Results []Result `json:"results"`
}

// NewResponse allocates a same-length results slice defaulting every
// entry to allowed=false, the coordinator's fail-closed default for any
// resource it could not resolve.
func NewResponse(n int) Response {
	return Response{Results: make([]Result, n)}
}
