package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/mise/internal/models"
)

var (
	underPattern   = regexp.MustCompile(`(?i)under\s+(\d+(?:\.\d+)?)`)
	overPattern    = regexp.MustCompile(`(?i)over\s+(\d+(?:\.\d+)?)`)
	betweenPattern = regexp.MustCompile(`(?i)between\s+(\d+(?:\.\d+)?)\s+and\s+(\d+(?:\.\d+)?)`)
)

// knownColors is scanned in order; the first one contained in the query wins.
var knownColors = []string{
	"white", "black", "red", "blue", "green", "yellow", "purple",
	"pink", "orange", "brown", "grey", "gray", "navy",
}

// FilterExtractor derives price bounds and a color from free-text queries.
type FilterExtractor struct {
	colors []string
}

// NewFilterExtractor returns an extractor using the built-in color vocabulary.
func NewFilterExtractor() *FilterExtractor {
	return &FilterExtractor{colors: knownColors}
}

// Extract returns the criteria found in query. Rules apply in order: "under N" sets
// the max price, "over N" the min price, and "between A and B" overrides both.
// Unmatched rules leave their fields unset.
func (x *FilterExtractor) Extract(query string) models.FilterCriteria {
	var criteria models.FilterCriteria

	if v, ok := firstNumber(underPattern, query, 1); ok {
		criteria.MaxPrice = &v
	}
	if v, ok := firstNumber(overPattern, query, 1); ok {
		criteria.MinPrice = &v
	}
	if m := betweenPattern.FindStringSubmatch(query); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			criteria.MinPrice = &lo
			criteria.MaxPrice = &hi
		}
	}

	lower := strings.ToLower(query)
	for _, color := range x.colors {
		if strings.Contains(lower, color) {
			criteria.Color = color
			break
		}
	}
	return criteria
}

func firstNumber(re *regexp.Regexp, s string, group int) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[group], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
