package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/pkg/utils"
)

func explain(query string, criteria models.FilterCriteria, scope string, matches []models.Match) *models.RetrievalExplanation {
	summary := "No matching products found"
	if len(matches) > 0 {
		summary = fmt.Sprintf("Found %d products matching your criteria", len(matches))
	}
	return &models.RetrievalExplanation{
		Query:             query,
		FiltersApplied:    criteria,
		FilterDescription: describeFilters(criteria),
		NumResults:        len(matches),
		ResultsSummary:    summary,
		SearchScope:       scope,
		Matches:           matches,
	}
}

// describeFilters renders criteria as "price over X and price under Y and color C".
// It returns nil when no criterion is set.
func describeFilters(c models.FilterCriteria) *string {
	var parts []string
	if c.MinPrice != nil {
		parts = append(parts, "price over "+utils.FormatPrice(*c.MinPrice))
	}
	if c.MaxPrice != nil {
		parts = append(parts, "price under "+utils.FormatPrice(*c.MaxPrice))
	}
	if c.Color != "" {
		parts = append(parts, "color "+c.Color)
	}
	if c.Brand != "" {
		parts = append(parts, "brand "+c.Brand)
	}
	if c.Category != "" {
		parts = append(parts, "category "+c.Category)
	}
	if len(parts) == 0 {
		return nil
	}
	desc := strings.Join(parts, " and ")
	return &desc
}
