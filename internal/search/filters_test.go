package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/mise/internal/models"
)

func TestFilterExtractor_Extract(t *testing.T) {
	x := NewFilterExtractor()
	tests := []struct {
		query string
		want  models.FilterCriteria
	}{
		{"shoes under 500", models.FilterCriteria{MaxPrice: models.Float(500)}},
		{"shoes over 200", models.FilterCriteria{MinPrice: models.Float(200)}},
		{"shoes between 200 and 500", models.FilterCriteria{MinPrice: models.Float(200), MaxPrice: models.Float(500)}},
		{"red shoes", models.FilterCriteria{Color: "red"}},
		{"shoes under 500 between 100 and 300", models.FilterCriteria{MinPrice: models.Float(100), MaxPrice: models.Float(300)}},
		{"Shoes UNDER 99.5", models.FilterCriteria{MaxPrice: models.Float(99.5)}},
		{"over 100 under 300 navy", models.FilterCriteria{MinPrice: models.Float(100), MaxPrice: models.Float(300), Color: "navy"}},
		{"grey or gray", models.FilterCriteria{Color: "grey"}},
		{"black and white dress", models.FilterCriteria{Color: "white"}},
		{"shoes under budget", models.FilterCriteria{}},
		{"", models.FilterCriteria{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, x.Extract(tt.query))
		})
	}
}

func TestFilterExtractor_ColorVocabulary(t *testing.T) {
	colors := NewFilterExtractor().colors
	assert.Len(t, colors, 13)
	assert.Equal(t, "white", colors[0])
	assert.Equal(t, "navy", colors[12])
}

func TestDescribeFilters(t *testing.T) {
	assert.Nil(t, describeFilters(models.FilterCriteria{}))

	desc := describeFilters(models.FilterCriteria{
		MinPrice: models.Float(100),
		MaxPrice: models.Float(199.99),
		Color:    "red",
		Brand:    "Acme",
	})
	if assert.NotNil(t, desc) {
		assert.Equal(t, "price over 100.0 and price under 199.99 and color red and brand Acme", *desc)
	}
}
