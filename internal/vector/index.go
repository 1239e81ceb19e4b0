// Package vector provides an in-memory vector index with exhaustive cosine similarity search.
package vector

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DimensionError carries the offending and expected lengths of a rejected vector.
type DimensionError struct {
	Got      int
	Expected int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, expected %d", e.Got, e.Expected)
}

// Unwrap lets errors.Is match ErrDimensionMismatch.
func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// Result is a single search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"` // cosine similarity in [-1, 1]
}
