package models

// Search scopes reported in a RetrievalExplanation.
const (
	ScopeFull     = "full"
	ScopeFiltered = "filtered"
	ScopeNone     = "none"
)

// Match is the similarity score of one returned product.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RetrievalExplanation describes why a set of products was returned.
type RetrievalExplanation struct {
	Query             string         `json:"query"`
	FiltersApplied    FilterCriteria `json:"filters_applied"`
	FilterDescription *string        `json:"filter_description"`
	NumResults        int            `json:"num_results"`
	ResultsSummary    string         `json:"results_summary"`
	SearchScope       string         `json:"search_scope"`
	Matches           []Match        `json:"matches"`
}

// QueryResponse is the response for a retrieval request.
type QueryResponse struct {
	Products    []*Product            `json:"products"`
	Explanation *RetrievalExplanation `json:"explanation"`
}
