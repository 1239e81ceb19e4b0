package models

import "fmt"

// DefaultTopK is used when a request does not set top_k.
const DefaultTopK = 5

// QueryRequest is a retrieval request.
type QueryRequest struct {
	Query   string          `json:"query"`
	TopK    int             `json:"top_k,omitempty"`
	Filters *FilterCriteria `json:"filters,omitempty"`
}

// Validate rejects an empty query and clamps TopK into [1, maxTopK].
// A maxTopK of zero or less disables the upper bound.
func (q *QueryRequest) Validate(maxTopK int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
