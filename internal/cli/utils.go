// Package cli provides output helpers for the mise command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Unknown values are text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

// WriteQueryResults writes a retrieval response to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	default:
		writeQueryResultsText(w, response)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, response *models.QueryResponse) {
	ex := response.Explanation
	if ex != nil {
		fmt.Fprintf(w, "\nQuery: %s\n", ex.Query)
		if ex.FilterDescription != nil {
			fmt.Fprintf(w, "Filters: %s\n", *ex.FilterDescription)
		}
		fmt.Fprintf(w, "%s (scope: %s)\n\n", ex.ResultsSummary, ex.SearchScope)
	}
	scores := make(map[string]float64)
	if ex != nil {
		for _, m := range ex.Matches {
			scores[m.ID] = m.Score
		}
	}
	for i, p := range response.Products {
		writeOneProduct(w, i+1, p, scores[p.ID])
	}
}

func writeOneProduct(w io.Writer, rank int, p *models.Product, score float64) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%d] %s | Score: %.4f\n", rank, p.Name, score)
	fmt.Fprintf(w, "ID: %s\n", p.ID)
	price := utils.FormatPrice(p.DiscountedPrice)
	if p.Price > p.DiscountedPrice {
		price += " (was " + utils.FormatPrice(p.Price) + ")"
	}
	fmt.Fprintf(w, "Brand: %s | Price: %s\n", p.Brand, price)
	if p.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", p.Category)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", TruncateWords(p.Description, 40))
	}
	fmt.Fprintln(w)
}

// WriteStatus writes a status document. Text output lists top-level keys in sorted order.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := status[k].(map[string]interface{}); ok {
			fmt.Fprintf(w, "%s:\n", k)
			sub := make([]string, 0, len(nested))
			for nk := range nested {
				sub = append(sub, nk)
			}
			sort.Strings(sub)
			for _, nk := range sub {
				fmt.Fprintf(w, "  %s: %v\n", nk, nested[nk])
			}
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", k, status[k])
	}
	return nil
}

// PrintQueryResults prints a retrieval response to stdout in text format.
func PrintQueryResults(response *models.QueryResponse) {
	_ = WriteQueryResults(os.Stdout, response, OutputText)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
