package httputil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	original := CreateCursor(now, "abc-123", true)

	token, err := EncodeCursor(original)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.PointsNext, decoded.PointsNext)
}

func TestDecodeCursor_EmptyTokenIsFirstPage(t *testing.T) {
	cur, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, Cursor{PointsNext: true}, cur)
}

func TestDecodeCursor_InvalidTokenErrors(t *testing.T) {
	_, err := DecodeCursor("not-valid-base64!!!")
	assert.Error(t, err)
}

func TestPaginateRecords_TrimsToLimit(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := PaginateRecords(true, true, true, items, 4, "ASC")
	assert.Equal(t, []int{1, 2, 3, 4}, out)
}

func TestPaginateRecords_ReversesForPreviousPage(t *testing.T) {
	items := []int{3, 2, 1}
	out := PaginateRecords(false, false, false, items, 3, "DESC")
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestPaginateRecords_NoTrimWhenUnderLimit(t *testing.T) {
	items := []int{1, 2}
	out := PaginateRecords(true, false, true, items, 5, "ASC")
	assert.Equal(t, []int{1, 2}, out)
}
