package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError_MessageFallback(t *testing.T) {
	err := NewNotFound("warehouse", "", nil)
	assert.Equal(t, "warehouse not found", err.Error())

	err = NewNotFound("warehouse", "custom message", nil)
	assert.Equal(t, "custom message", err.Error())
}

func TestNotFoundError_Unwrap(t *testing.T) {
	cause := errors.New("sql: no rows")
	err := NewNotFound("table", "", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestConflictError_MessageFallback(t *testing.T) {
	err := NewConflict("namespace", "", nil)
	assert.Equal(t, "namespace conflict", err.Error())
}

func TestInternalError_IncludesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal("commit transaction", cause)

	assert.Contains(t, err.Error(), "commit transaction")
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, errors.Is(err, cause))
}

func TestForbiddenError_Message(t *testing.T) {
	err := NewForbidden("user:alice", "drop", "table:abc")
	require.Error(t, err)
	assert.Equal(t, "user:alice is not allowed to perform drop on table:abc", err.Error())
}

func TestMethodNotAllowedError_Message(t *testing.T) {
	err := NewMethodNotAllowed("DELETE")
	assert.Equal(t, "method DELETE is not allowed for signing", err.Error())
}

func TestErrorKinds_AreDistinguishableByType(t *testing.T) {
	var err error = NewNotFound("project", "", nil)

	switch err.(type) {
	case NotFoundError:
	default:
		t.Fatalf("expected NotFoundError, got %T", err)
	}
}
