// Package httputil holds small REST-facing helpers (keyset pagination,
// cursor encode/decode) shared by every list endpoint, generalized from a
// single "id" key to the catalog's (created_at, id) keyset.
package httputil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Cursor is the opaque keyset-pagination position handed back to callers
// in a page response and accepted on the next request.
type Cursor struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	PointsNext bool      `json:"points_next"`
}

// CreateCursor builds a Cursor pointing at (createdAt, id); pointsNext
// selects whether the cursor continues forward or backward from there.
func CreateCursor(createdAt time.Time, id string, pointsNext bool) Cursor {
	return Cursor{CreatedAt: createdAt, ID: id, PointsNext: pointsNext}
}

// EncodeCursor base64-encodes c as an opaque page token.
func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeCursor parses an opaque page token produced by EncodeCursor. An
// empty token decodes to a first-page Cursor with only PointsNext set.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{PointsNext: true}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}

	return c, nil
}

// ApplyCursorPagination adds the WHERE/ORDER BY/LIMIT clauses implementing
// keyset pagination over (created_at, id) onto query, and returns the
// effective sort order to apply to the fetched rows before trimming to
// limit (PaginateRecords below undoes the reversal used for "previous page"
// queries).
func ApplyCursorPagination(query squirrel.SelectBuilder, cur Cursor, orderDirection string, limit int) (squirrel.SelectBuilder, string) {
	direction := orderDirection
	if direction == "" {
		direction = "ASC"
	}

	if cur.ID != "" {
		if cur.PointsNext {
			op := "<"
			if direction == "ASC" {
				op = ">"
			}

			query = query.Where(squirrel.Expr("(created_at, id) "+op+" (?, ?)", cur.CreatedAt, cur.ID))
		} else {
			op := ">"
			if direction == "ASC" {
				op = "<"
			}

			query = query.Where(squirrel.Expr("(created_at, id) "+op+" (?, ?)", cur.CreatedAt, cur.ID))
			direction = flip(direction)
		}
	}

	query = query.OrderBy("created_at "+direction, "id "+direction).Limit(uint64(limit + 1))

	return query, direction
}

func flip(direction string) string {
	if direction == "ASC" {
		return "DESC"
	}

	return "ASC"
}

// PaginateRecords trims a fetched (limit+1)-sized slice down to limit
// records in caller-facing order, given whether it was a first page, a
// forward page, and a genuinely "next" direction query (mirrors the
// teacher's PaginateRecords reversal logic for "previous page" queries).
func PaginateRecords[T any](isFirstPage, hasMore, pointsNext bool, items []T, limit int, orderDirection string) []T {
	if len(items) > limit {
		items = items[:limit]
	}

	if !pointsNext {
		reversed := make([]T, len(items))
		for i, v := range items {
			reversed[len(items)-1-i] = v
		}

		return reversed
	}

	return items
}
