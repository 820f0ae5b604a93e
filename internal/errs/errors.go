// Package errs defines the typed business errors shared across the catalog
// core. Every component-local failure is surfaced as one of these kinds so
// a single translation layer (internal/httpapi) can map it to a stable
// HTTP-style status without each call site knowing about transport.
package errs

import (
	"fmt"
)

// NotFoundError indicates a resource is absent, a warehouse is inactive
// (treated as absent), or policy denies visibility when error_on_not_found
// is requested.
type NotFoundError struct {
	EntityType string
	Message    string
	Err        error
}

func (e NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.EntityType != "" {
		return fmt.Sprintf("%s not found", e.EntityType)
	}

	return "not found"
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ConflictError indicates a name collision, an unstaged re-create, a
// protected resource dropped without force, a non-empty namespace dropped
// without recursive, or a concurrent metadata-pointer update.
type ConflictError struct {
	EntityType string
	Message    string
	Err        error
}

func (e ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("%s conflict", e.EntityType)
}

func (e ConflictError) Unwrap() error { return e.Err }

// BadRequestError indicates a malformed identifier, invalid location,
// region mismatch, unsupported URL scheme, location outside the warehouse,
// or a metadata serialization failure.
type BadRequestError struct {
	EntityType string
	Message    string
	Err        error
}

func (e BadRequestError) Error() string { return e.Message }
func (e BadRequestError) Unwrap() error { return e.Err }

// ForbiddenError indicates the policy store denies an action the subject
// can see (as opposed to NotFoundError, which hides existence entirely).
type ForbiddenError struct {
	Subject  string
	Action   string
	EntityID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s is not allowed to perform %s on %s", e.Subject, e.Action, e.EntityID)
}

// PreconditionFailedError indicates signing was requested without
// credentials on a profile that requires them.
type PreconditionFailedError struct {
	Message string
}

func (e PreconditionFailedError) Error() string { return e.Message }

// MethodNotAllowedError indicates a sign request for a method that is
// neither a read nor a write verb.
type MethodNotAllowedError struct {
	Method string
}

func (e MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s is not allowed for signing", e.Method)
}

// InternalError wraps database, serialization, policy-store, or migration
// failures that have no more specific classification.
type InternalError struct {
	Message string
	Err     error
}

func (e InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e InternalError) Unwrap() error { return e.Err }

// NewNotFound builds a NotFoundError for entityType, optionally wrapping err.
func NewNotFound(entityType, message string, err error) error {
	return NotFoundError{EntityType: entityType, Message: message, Err: err}
}

// NewConflict builds a ConflictError for entityType, optionally wrapping err.
func NewConflict(entityType, message string, err error) error {
	return ConflictError{EntityType: entityType, Message: message, Err: err}
}

// NewBadRequest builds a BadRequestError for entityType, optionally wrapping err.
func NewBadRequest(entityType, message string, err error) error {
	return BadRequestError{EntityType: entityType, Message: message, Err: err}
}

// NewInternal wraps err as an InternalError with a human message.
func NewInternal(message string, err error) error {
	return InternalError{Message: message, Err: err}
}

// NewForbidden builds a ForbiddenError for a denied (subject, action, entity).
func NewForbidden(subject, action, entityID string) error {
	return ForbiddenError{Subject: subject, Action: action, EntityID: entityID}
}

// NewPreconditionFailed builds a PreconditionFailedError with message.
func NewPreconditionFailed(message string) error {
	return PreconditionFailedError{Message: message}
}

// NewMethodNotAllowed builds a MethodNotAllowedError for method.
func NewMethodNotAllowed(method string) error {
	return MethodNotAllowedError{Method: method}
}
